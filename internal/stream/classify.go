package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/mo"
)

var ErrMalformedFrame = errors.New("malformed frame")

// Classify parses a raw inbound frame into a Message. Frames that cannot be
// parsed return ErrMalformedFrame and must be dropped by the caller. Frames
// with an unknown type are turned into error messages naming that type.
func Classify(raw []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Message{}, errors.Mark(errors.Wrap(err, "decode frame"), ErrMalformedFrame)
	}

	ts, err := parseTimestamp(f.Timestamp)
	if err != nil {
		return Message{}, errors.Mark(err, ErrMalformedFrame)
	}

	msg := Message{
		Namespace: f.Namespace,
		PodName:   f.PodName,
		Kind:      Kind(f.Type),
		Text:      f.Text,
		Timestamp: ts,
	}

	if !msg.Kind.Valid() {
		msg.Kind = KindError
		msg.Text = fmt.Sprintf("unknown message type %q: %s", f.Type, f.Text)
	}

	return msg, nil
}

// parseTimestamp accepts an epoch-millisecond number. A missing or null
// timestamp yields None.
func parseTimestamp(raw json.RawMessage) (mo.Option[time.Time], error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return mo.None[time.Time](), nil
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return mo.None[time.Time](), errors.Wrapf(err, "invalid timestamp %s", raw)
	}

	return mo.Some(time.UnixMilli(ms).UTC()), nil
}
