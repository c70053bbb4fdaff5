package capability

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/mo"
)

// Token is an opaque, externally issued permission. It is passed through
// unmodified; the only transformation is serializing structured access keys.
type Token string

func (t Token) String() string { return string(t) }

// accessKey is the structured form some directories return instead of a
// pre-serialized token.
type accessKey struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Resource string `json:"resource"`
}

func (k accessKey) serialize() Token {
	return Token(strings.Join([]string{k.ID, k.Type, k.Resource}, "|"))
}

func (t *Token) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode access key")
		}
		*t = Token(s)
		return nil
	}

	var k accessKey
	if err := json.Unmarshal(data, &k); err != nil {
		return errors.Wrap(err, "decode access key")
	}
	*t = k.serialize()
	return nil
}

type Scope string

const (
	ScopeView    Scope = "view"
	ScopeFilter  Scope = "filter"
	ScopeRestart Scope = "restart"
)

// ParseScopes parses a comma separated scope list, ignoring blanks.
func ParseScopes(raw string) ([]Scope, error) {
	var out []Scope
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch Scope(part) {
		case ScopeView, ScopeFilter, ScopeRestart:
			out = append(out, Scope(part))
		default:
			return nil, errors.Newf("unknown scope: %s", part)
		}
	}
	return out, nil
}

func JoinScopes(scopes []Scope) string {
	parts := make([]string, 0, len(scopes))
	for _, s := range scopes {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

// Set holds the capabilities attached to a single pod. An absent capability
// means the matching action is unavailable for that pod.
type Set struct {
	// View is the plain view capability.
	View mo.Option[Token]
	// ScopedView is a view capability issued together with the restart scope.
	ScopedView mo.Option[Token]
	Restart    mo.Option[Token]
}

// StreamToken picks the token used to open a log stream. The plain view
// capability wins; the scoped view capability is the fallback. A restart
// capability alone never grants streaming.
func (s Set) StreamToken() (Token, Scope, bool) {
	if t, ok := s.View.Get(); ok && t != "" {
		return t, ScopeFilter, true
	}
	if t, ok := s.ScopedView.Get(); ok && t != "" {
		return t, ScopeView, true
	}
	return "", "", false
}

func (s Set) CanView() bool {
	_, _, ok := s.StreamToken()
	return ok
}

func (s Set) RestartToken() (Token, bool) {
	t, ok := s.Restart.Get()
	return t, ok && t != ""
}

// Filter drops every capability whose scope was not requested.
func (s Set) Filter(scopes []Scope) Set {
	var out Set
	for _, scope := range scopes {
		switch scope {
		case ScopeView, ScopeFilter:
			out.View = s.View
			out.ScopedView = s.ScopedView
		case ScopeRestart:
			out.Restart = s.Restart
		}
	}
	return out
}

type wireSet struct {
	AccessKey        *Token `json:"accessKey,omitempty"`
	ViewAccessKey    *Token `json:"viewAccessKey,omitempty"`
	RestartAccessKey *Token `json:"restartAccessKey,omitempty"`
}

func toOption(t *Token) mo.Option[Token] {
	if t == nil || *t == "" {
		return mo.None[Token]()
	}
	return mo.Some(*t)
}

func fromOption(o mo.Option[Token]) *Token {
	t, ok := o.Get()
	if !ok {
		return nil
	}
	return &t
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSet{
		AccessKey:        fromOption(s.View),
		ViewAccessKey:    fromOption(s.ScopedView),
		RestartAccessKey: fromOption(s.Restart),
	})
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var w wireSet
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Set{
		View:       toOption(w.AccessKey),
		ScopedView: toOption(w.ViewAccessKey),
		Restart:    toOption(w.RestartAccessKey),
	}
	return nil
}
