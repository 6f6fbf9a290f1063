package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultDenylist names the snapshot keys that never reach storage.
var DefaultDenylist = []string{"password", "passwordHash", "password_hash"}

// Sanitizer strips denylisted keys from arbitrary JSON-serializable snapshots.
// Keys are compared case-insensitively at every depth of objects and arrays.
type Sanitizer struct {
	deny map[string]struct{}
}

// NewSanitizer returns a sanitizer for DefaultDenylist plus extra keys.
func NewSanitizer(extra ...string) *Sanitizer {
	s := &Sanitizer{deny: make(map[string]struct{}, len(DefaultDenylist)+len(extra))}
	for _, k := range DefaultDenylist {
		s.deny[strings.ToLower(k)] = struct{}{}
	}
	for _, k := range extra {
		if k = strings.TrimSpace(k); k != "" {
			s.deny[strings.ToLower(k)] = struct{}{}
		}
	}
	return s
}

// Denied reports whether key is removed by the sanitizer.
func (s *Sanitizer) Denied(key string) bool {
	_, ok := s.deny[strings.ToLower(key)]
	return ok
}

// Sanitize serializes v, removes denylisted keys and returns the cleaned document.
// A nil snapshot yields nil so that "absent" stays distinct from an explicit JSON null.
func (s *Sanitizer) Sanitize(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot is not serializable: %v", ErrInvalidInput, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: snapshot is not valid JSON: %v", ErrInvalidInput, err)
	}
	out, err := json.Marshal(s.Clean(tree))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return out, nil
}

// Clean walks a decoded JSON tree and returns a copy without denylisted keys.
// Scalars, including nil, are returned unchanged.
func (s *Sanitizer) Clean(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if s.Denied(k) {
				continue
			}
			out[k] = s.Clean(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = s.Clean(child)
		}
		return out
	default:
		return v
	}
}
