package runtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/samber/mo"
	"github.com/stretchr/testify/require"
)

func TestFollowOptionsFromQuery(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        followOptions
		wantErr     bool
		errContains string
	}{
		{
			name: "defaults",
			url:  "/api/v1/session/follow",
			want: followOptions{
				Format:   followFormatJSON,
				Interval: defaultFollowInterval,
				Replay:   mo.Some[uint64](0),
			},
		},
		{
			name: "tail lines",
			url:  "/api/v1/session/follow?format=text&frequencyMs=250&tailLines=40",
			want: followOptions{
				Format:   followFormatText,
				Interval: 250 * time.Millisecond,
				Replay:   mo.Some[uint64](40),
			},
		},
		{
			name: "from start wins over tail lines",
			url:  "/api/v1/session/follow?fromStart=true&tailLines=40",
			want: followOptions{
				Format:   followFormatJSON,
				Interval: defaultFollowInterval,
				Replay:   mo.None[uint64](),
			},
		},
		{
			name:        "invalid format",
			url:         "/api/v1/session/follow?format=xml",
			wantErr:     true,
			errContains: "invalid format",
		},
		{
			name:        "invalid frequency",
			url:         "/api/v1/session/follow?frequencyMs=abc",
			wantErr:     true,
			errContains: "invalid frequencyMs",
		},
		{
			name:        "frequency too low",
			url:         "/api/v1/session/follow?frequencyMs=50",
			wantErr:     true,
			errContains: "frequencyMs must be between",
		},
		{
			name:        "invalid fromStart",
			url:         "/api/v1/session/follow?fromStart=yep",
			wantErr:     true,
			errContains: "invalid fromStart",
		},
		{
			name:        "frequency too high",
			url:         "/api/v1/session/follow?frequencyMs=60000",
			wantErr:     true,
			errContains: "frequencyMs must be between 100 and 10000",
		},
		{
			name:        "non numeric tailLines",
			url:         "/api/v1/session/follow?tailLines=all",
			wantErr:     true,
			errContains: "invalid tailLines",
		},
		{
			name:        "invalid tailLines",
			url:         "/api/v1/session/follow?tailLines=0",
			wantErr:     true,
			errContains: "tailLines must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)

			got, err := followOptionsFromQuery(req)

			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFollowReplayFrom(t *testing.T) {
	tests := []struct {
		name   string
		replay mo.Option[uint64]
		head   uint64
		want   uint64
	}{
		{name: "live only", replay: mo.Some[uint64](0), head: 12, want: 12},
		{name: "everything", replay: mo.None[uint64](), head: 12, want: 0},
		{name: "tail", replay: mo.Some[uint64](2), head: 12, want: 10},
		{name: "tail beyond head", replay: mo.Some[uint64](40), head: 12, want: 0},
		{name: "empty session", replay: mo.Some[uint64](5), head: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, followOptions{Replay: tt.replay}.replayFrom(tt.head))
		})
	}
}

func TestWriteFollowRecord(t *testing.T) {
	msg := stream.Message{
		Namespace: "default",
		PodName:   "api-0",
		Kind:      stream.KindLog,
		Text:      "hello",
		Timestamp: mo.Some(time.Date(2026, time.February, 19, 12, 0, 0, 0, time.UTC)),
	}

	tests := []struct {
		name    string
		msg     stream.Message
		format  followFormat
		want    string
		wantErr bool
	}{
		{
			name:   "writes json ndjson line",
			msg:    msg,
			format: followFormatJSON,
			want:   "{\"namespace\":\"default\",\"pod\":\"api-0\",\"type\":\"log\",\"message\":\"hello\",\"timestamp\":\"2026-02-19T12:00:00Z\"}\n",
		},
		{
			name:   "omits missing timestamp",
			msg:    stream.Message{Namespace: "default", PodName: "api-0", Kind: stream.KindLog, Text: "hello"},
			format: followFormatJSON,
			want:   "{\"namespace\":\"default\",\"pod\":\"api-0\",\"type\":\"log\",\"message\":\"hello\"}\n",
		},
		{
			name:   "writes text line",
			msg:    msg,
			format: followFormatText,
			want:   "hello\n",
		},
		{
			name:    "rejects unknown format",
			msg:     msg,
			format:  followFormat("yaml"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder

			err := writeFollowRecord(&out, tt.msg, tt.format)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, out.String())
		})
	}
}
