package audit

import (
	"context"
	"strings"
)

type ctxKey struct{}

// RequestMeta is the transport metadata stamped on every entry written within a request.
type RequestMeta struct {
	ID        string
	IP        string
	UserAgent string
}

// WithRequestMeta attaches request metadata to the context for audit logging.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	meta.ID = strings.TrimSpace(meta.ID)
	meta.IP = strings.TrimSpace(meta.IP)
	meta.UserAgent = strings.TrimSpace(meta.UserAgent)
	return context.WithValue(ctx, ctxKey{}, meta)
}

// RequestMetaFromContext extracts request metadata if present.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(RequestMeta)
	return meta, ok
}
