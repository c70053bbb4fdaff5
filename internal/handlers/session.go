package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"

	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/JNickson/kubelog-viewer/internal/export"
	"github.com/JNickson/kubelog-viewer/internal/session"
	"github.com/JNickson/kubelog-viewer/internal/store"
	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/JNickson/kubelog-viewer/internal/utils"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/samber/mo"
)

// Session is the part of session.Session the HTTP surface drives.
type Session interface {
	Snapshot(ctx context.Context) (session.Snapshot, error)
	SelectCluster(ctx context.Context, name string) error
	SelectNamespace(ctx context.Context, namespace string) error
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	UpdateOptions(ctx context.Context, patch session.OptionsPatch) error
	Restart(ctx context.Context) error
	StatusMessages(ctx context.Context, kind stream.Kind) ([]stream.Message, error)
	ClearStatus(ctx context.Context, kind stream.Kind) error
	DismissNotice(ctx context.Context) error
	Export(ctx context.Context) (string, []stream.Message, error)
}

type sessionView struct {
	session.Snapshot
	Availability   directory.Availability `json:"availability"`
	DiscoveryError string                 `json:"discoveryError,omitempty"`
}

func SessionHandler(sess Session, st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := sess.Snapshot(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}

		utils.WriteJSON(w, http.StatusOK, sessionView{
			Snapshot:       snap,
			Availability:   directory.Summarize(st.ListClusters()),
			DiscoveryError: st.DiscoveryError().OrEmpty(),
		})
	}
}

type selectRequest struct {
	Name string `json:"name"`
}

// SelectClusterHandler takes the cluster name from ?name= or a JSON body.
func SelectClusterHandler(sess Session) http.HandlerFunc {
	return selectHandler(sess, sess.SelectCluster)
}

func SelectNamespaceHandler(sess Session) http.HandlerFunc {
	return selectHandler(sess, sess.SelectNamespace)
}

func selectHandler(sess Session, apply func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" && isJSON(r) {
			var req selectRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				utils.WriteError(w, http.StatusBadRequest, "invalid body: "+err.Error())
				return
			}
			name = req.Name
		}

		if name == "" {
			utils.WriteError(w, http.StatusBadRequest, "name required")
			return
		}

		if err := apply(r.Context(), name); err != nil {
			writeSessionError(w, err)
			return
		}
		writeSnapshot(w, r, sess)
	}
}

// CommandHandler runs a parameterless session command and answers with the
// resulting snapshot.
func CommandHandler(sess Session, cmd func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cmd(r.Context()); err != nil {
			writeSessionError(w, err)
			return
		}
		writeSnapshot(w, r, sess)
	}
}

// OptionsHandler updates stream options. Fields missing from the request keep
// their current value.
func OptionsHandler(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, err := optionsPatchFromRequest(r)
		if err != nil {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := sess.UpdateOptions(r.Context(), patch); err != nil {
			writeSessionError(w, err)
			return
		}
		writeSnapshot(w, r, sess)
	}
}

func optionsPatchFromRequest(r *http.Request) (session.OptionsPatch, error) {
	if isJSON(r) {
		var body struct {
			IncludeTimestamp *bool `json:"timestamp"`
			IncludePrevious  *bool `json:"previous"`
			Follow           *bool `json:"follow"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return session.OptionsPatch{}, errors.Wrap(err, "invalid body")
		}
		return session.OptionsPatch{
			IncludeTimestamp: mo.PointerToOption(body.IncludeTimestamp),
			IncludePrevious:  mo.PointerToOption(body.IncludePrevious),
			Follow:           mo.PointerToOption(body.Follow),
		}, nil
	}

	var (
		q     = r.URL.Query()
		patch session.OptionsPatch
		err   error
	)
	for key, dst := range map[string]*mo.Option[bool]{
		"timestamp": &patch.IncludeTimestamp,
		"previous":  &patch.IncludePrevious,
		"follow":    &patch.Follow,
	} {
		if *dst, err = utils.QueryBool(q, key); err != nil {
			return session.OptionsPatch{}, err
		}
	}
	return patch, nil
}

// StatusHandler lists status messages of one kind (?type=info|warning|error).
func StatusHandler(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := statusKind(r.URL.Query().Get("type"))
		if !ok {
			utils.WriteError(w, http.StatusBadRequest, "type must be one of info, warning, error")
			return
		}

		msgs, err := sess.StatusMessages(r.Context(), kind)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		if msgs == nil {
			msgs = []stream.Message{}
		}
		utils.WriteJSON(w, http.StatusOK, msgs)
	}
}

func ClearStatusHandler(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := statusKind(chi.URLParam(r, "kind"))
		if !ok {
			utils.WriteError(w, http.StatusBadRequest, "kind must be one of info, warning, error")
			return
		}

		if err := sess.ClearStatus(r.Context(), kind); err != nil {
			writeSessionError(w, err)
			return
		}
		writeSnapshot(w, r, sess)
	}
}

func DownloadHandler(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, msgs, err := sess.Export(r.Context())
		if err != nil {
			writeSessionError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		w.WriteHeader(http.StatusOK)

		if err := export.Write(w, msgs); err != nil {
			slog.Warn("log download interrupted", "file", name, "error", err)
		}
	}
}

func statusKind(raw string) (stream.Kind, bool) {
	kind := stream.Kind(raw)
	return kind, kind.IsStatus()
}

func writeSnapshot(w http.ResponseWriter, r *http.Request, sess Session) {
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, snap)
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrUnknownCluster), errors.Is(err, session.ErrUnknownNamespace):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNoSelection):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoCapability):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	utils.WriteError(w, status, err.Error())
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}
