package api

import (
	"context"
	"net/http"

	"github.com/annotateapp/annotate-server/internal/auth"
	"github.com/annotateapp/annotate-server/internal/http/response"
)

// Identity headers. The service trusts a fronting auth layer to have
// verified them; an absent user header means an anonymous request.
const (
	headerUser        = "X-Annotator-User"
	headerConsumerKey = "X-Annotator-Consumer-Key"
)

type contextKey string

const principalKey contextKey = "principal"

// withPrincipal extracts the caller identity from the request headers
// and stores it on the context for handlers.
func (s *Server) withPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := auth.Principal{
			UserID:      r.Header.Get(headerUser),
			ConsumerKey: r.Header.Get(headerConsumerKey),
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getPrincipal returns the caller identity set by withPrincipal.
func getPrincipal(ctx context.Context) auth.Principal {
	principal, _ := ctx.Value(principalKey).(auth.Principal)
	return principal
}

// requireAdmin gates moderation routes on the configured consumer key.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := getPrincipal(r.Context())
		if s.adminKey == "" || principal.ConsumerKey != s.adminKey {
			response.Unauthorized(w, "admin consumer key required", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
