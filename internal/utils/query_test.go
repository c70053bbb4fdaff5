package utils

import (
	"net/url"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/require"
)

func TestQueryBool(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		want        mo.Option[bool]
		errContains string
	}{
		{name: "absent", query: "", want: mo.None[bool]()},
		{name: "empty", query: "follow=", want: mo.None[bool]()},
		{name: "true", query: "follow=true", want: mo.Some(true)},
		{name: "numeric false", query: "follow=0", want: mo.Some(false)},
		{name: "invalid", query: "follow=maybe", errContains: "invalid follow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := QueryBool(q, "follow")
			if tt.errContains != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		want        mo.Option[int64]
		errContains string
	}{
		{name: "absent", query: "", want: mo.None[int64]()},
		{name: "value", query: "tailLines=40", want: mo.Some[int64](40)},
		{name: "negative", query: "tailLines=-3", want: mo.Some[int64](-3)},
		{name: "invalid", query: "tailLines=forty", errContains: "invalid tailLines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := QueryInt(q, "tailLines")
			if tt.errContains != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
