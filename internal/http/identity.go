package http

import (
	"context"
	"net/http"
	"strings"

	"savvycent/internal/core"
	applog "savvycent/internal/log"
)

// Identity headers set by the authenticating proxy in front of the API.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

type userKey struct{}

// identity resolves the caller from the proxy headers and makes sure the
// user row exists. Requests without a user ID are rejected with 401.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			FromError(core.ErrUnauthorized).Write(w)
			return
		}

		user, err := s.ledger.EnsureUser(r.Context(), core.User{
			ID:    id,
			Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
			Name:  sanitizeInput(r.Header.Get(HeaderUserName)),
		})
		if err != nil {
			s.fail(w, r, "Failed to resolve user", err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, user)
		ctx = applog.Enrich(ctx, applog.FieldUserID, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) core.User {
	u, _ := ctx.Value(userKey{}).(core.User)
	return u
}

// fail logs unexpected errors and writes the mapped response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := FromError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), msg, applog.FieldError, err)
	} else {
		applog.FromContext(r.Context()).DebugContext(r.Context(), msg, applog.FieldError, err)
	}
	resp.Write(w)
}
