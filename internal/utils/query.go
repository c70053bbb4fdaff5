package utils

import (
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/samber/mo"
)

// QueryBool reads an optional boolean query parameter. An absent or empty
// parameter is None.
func QueryBool(q url.Values, key string) (mo.Option[bool], error) {
	raw := q.Get(key)
	if raw == "" {
		return mo.None[bool](), nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return mo.None[bool](), errors.Wrapf(err, "invalid %s", key)
	}
	return mo.Some(v), nil
}

// QueryInt reads an optional base-10 integer query parameter.
func QueryInt(q url.Values, key string) (mo.Option[int64], error) {
	raw := q.Get(key)
	if raw == "" {
		return mo.None[int64](), nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return mo.None[int64](), errors.Wrapf(err, "invalid %s", key)
	}
	return mo.Some(v), nil
}
