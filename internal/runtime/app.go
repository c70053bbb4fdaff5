package runtime

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/config"
	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/JNickson/kubelog-viewer/internal/handlers"
	"github.com/JNickson/kubelog-viewer/internal/metrics"
	"github.com/JNickson/kubelog-viewer/internal/session"
	"github.com/JNickson/kubelog-viewer/internal/store"
	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the App is assembled from.
type Deps struct {
	Directory directory.Directory
	Entity    directory.Entity
	Connector session.Connector
	Restarter session.Restarter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type App struct {
	cfg     config.Settings
	deps    Deps
	store   *store.Store
	session *session.Session
	server  *http.Server
}

func New(cfg config.Settings, deps Deps) *App {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &App{
		cfg:   cfg,
		deps:  deps,
		store: store.New(deps.Entity.Metadata.Name),
	}
}

// Discover resolves the entity once and creates the session over the result.
// A discovery failure is recorded, not returned: the session then has no
// clusters and the API reports the error.
func (a *App) Discover(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DiscoveryTimeout)
	defer cancel()

	scopes, err := a.cfg.Scopes()
	if err != nil {
		a.store.Fail(err)
	} else {
		clusters, err := a.deps.Directory.ResolveResourcesWithCapabilities(ctx, a.deps.Entity, scopes)
		if err != nil {
			a.deps.Logger.Error("resource discovery failed", "entity", a.store.Entity(), "error", err)
			a.store.Fail(err)
		} else {
			a.deps.Logger.Info("resources discovered",
				"entity", a.store.Entity(),
				"clusters", len(clusters),
				"availability", directory.Summarize(clusters),
			)
			a.store.ReplaceClusters(clusters)
		}
	}

	a.session = session.New(session.Config{
		Entity:            a.store.Entity(),
		Clusters:          a.store.ListClusters(),
		Capacity:          a.cfg.BufferCapacity,
		MinRestartVersion: a.cfg.MinRestartVersion,
		Connector:         a.deps.Connector,
		Restarter:         a.deps.Restarter,
		Metrics:           a.deps.Metrics,
		Logger:            a.deps.Logger,
	})
}

// Start discovers resources, serves the API and blocks until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.Discover(ctx)

	sessionCtx, stopSession := context.WithCancel(context.Background())
	sessionDone := make(chan struct{})
	go func() {
		defer close(sessionDone)
		a.session.Run(sessionCtx)
	}()

	a.server = &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = a.server.Shutdown(shutdownCtx)

	stopSession()
	<-sessionDone
}

// Handler builds the HTTP API. Discover must have run first.
func (a *App) Handler() http.Handler {
	sess := a.session

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", handlers.HealthHandler())
	r.Get("/readyz", handlers.ReadyHandler(a.store.Ready))
	r.Handle("/metrics", promhttp.HandlerFor(a.deps.Metrics.Registry(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/clusters", handlers.ClustersHandler(a.store))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", handlers.SessionHandler(sess, a.store))
			r.Post("/cluster", handlers.SelectClusterHandler(sess))
			r.Post("/namespace", handlers.SelectNamespaceHandler(sess))
			r.Post("/start", handlers.CommandHandler(sess, sess.Start))
			r.Post("/pause", handlers.CommandHandler(sess, sess.Pause))
			r.Post("/stop", handlers.CommandHandler(sess, sess.Stop))
			r.Post("/restart", handlers.CommandHandler(sess, sess.Restart))
			r.Put("/options", handlers.OptionsHandler(sess))
			r.Get("/status", handlers.StatusHandler(sess))
			r.Delete("/status/{kind}", handlers.ClearStatusHandler(sess))
			r.Delete("/notice", handlers.CommandHandler(sess, sess.DismissNotice))
			r.Get("/download", handlers.DownloadHandler(sess))
			r.Get("/follow", a.followHandler)
		})
	})

	return r
}

// followHandler streams visible log lines as they arrive, polling the
// session at the requested interval.
func (a *App) followHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := followOptionsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// An out of range cursor reads nothing and reports the head.
	_, head, err := a.session.Tail(r.Context(), math.MaxUint64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if opts.Format == followFormatJSON {
		w.Header().Set("Content-Type", "application/x-ndjson; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	cursor := opts.replayFrom(head)
	for {
		var msgs []stream.Message
		msgs, cursor, err = a.session.Tail(r.Context(), cursor)
		if err != nil {
			if r.Context().Err() == nil {
				slog.Warn("log follow ended with error", "error", err)
			}
			return
		}

		if len(msgs) > 0 {
			for _, msg := range msgs {
				if err := writeFollowRecord(w, msg, opts.Format); err != nil {
					return
				}
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
