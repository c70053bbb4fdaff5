package runtime

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/JNickson/kubelog-viewer/internal/utils"
	"github.com/cockroachdb/errors"
	"github.com/samber/mo"
)

type followFormat string

const (
	followFormatText followFormat = "text"
	followFormatJSON followFormat = "json"
)

// followOptions shape one /session/follow response.
type followOptions struct {
	Format   followFormat
	Interval time.Duration
	// Replay is how many already visible messages to send before live ones.
	// None replays everything still in the buffer.
	Replay mo.Option[uint64]
}

const (
	defaultFollowInterval = 500 * time.Millisecond
	minFollowInterval     = 100 * time.Millisecond
	maxFollowInterval     = 10 * time.Second
)

// followOptionsFromQuery reads format, frequencyMs, tailLines and fromStart.
// fromStart wins over tailLines.
func followOptionsFromQuery(r *http.Request) (followOptions, error) {
	q := r.URL.Query()
	opts := followOptions{
		Format:   followFormatJSON,
		Interval: defaultFollowInterval,
		Replay:   mo.Some[uint64](0),
	}

	switch format := followFormat(q.Get("format")); format {
	case "":
	case followFormatText, followFormatJSON:
		opts.Format = format
	default:
		return followOptions{}, errors.Newf("invalid format: %s", format)
	}

	ms, err := utils.QueryInt(q, "frequencyMs")
	if err != nil {
		return followOptions{}, err
	}
	if v, ok := ms.Get(); ok {
		opts.Interval = time.Duration(v) * time.Millisecond
		if opts.Interval < minFollowInterval || opts.Interval > maxFollowInterval {
			return followOptions{}, errors.Newf(
				"frequencyMs must be between %d and %d",
				minFollowInterval.Milliseconds(),
				maxFollowInterval.Milliseconds(),
			)
		}
	}

	tail, err := utils.QueryInt(q, "tailLines")
	if err != nil {
		return followOptions{}, err
	}
	if v, ok := tail.Get(); ok {
		if v < 1 {
			return followOptions{}, errors.New("tailLines must be >= 1")
		}
		opts.Replay = mo.Some(uint64(v))
	}

	fromStart, err := utils.QueryBool(q, "fromStart")
	if err != nil {
		return followOptions{}, err
	}
	if fromStart.OrElse(false) {
		opts.Replay = mo.None[uint64]()
	}

	return opts, nil
}

// replayFrom turns the session head cursor into the cursor the first read
// starts at. Session.Tail clamps cursors that fall before the buffer.
func (o followOptions) replayFrom(head uint64) uint64 {
	n, ok := o.Replay.Get()
	if !ok {
		return 0
	}
	return head - min(n, head)
}

type followRecord struct {
	Namespace string      `json:"namespace"`
	Pod       string      `json:"pod"`
	Kind      stream.Kind `json:"type"`
	Message   string      `json:"message"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

func writeFollowRecord(w io.Writer, msg stream.Message, format followFormat) error {
	switch format {
	case followFormatJSON:
		record := followRecord{
			Namespace: msg.Namespace,
			Pod:       msg.PodName,
			Kind:      msg.Kind,
			Message:   msg.Text,
		}
		if ts, ok := msg.Timestamp.Get(); ok {
			record.Timestamp = &ts
		}

		b, err := json.Marshal(record)
		if err != nil {
			return err
		}

		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}

		return nil
	case followFormatText:
		_, err := io.WriteString(w, msg.Text+"\n")
		return err
	default:
		return errors.Newf("unsupported format: %s", format)
	}
}
