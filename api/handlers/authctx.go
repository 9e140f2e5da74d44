package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/store"
	"github.com/BaSui01/agentflow/types"
)

type contextKey string

const userContextKey contextKey = "authenticated_user"

// WithUser attaches the resolved session user to ctx. Called once, by
// the session-auth middleware, after pipeline.AuthenticatedUser
// succeeds.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromRequest returns the authenticated user the session-auth
// middleware attached to r's context. Every handler mounted behind
// that middleware can assume ok == true.
func UserFromRequest(r *http.Request) (*store.User, bool) {
	u, ok := r.Context().Value(userContextKey).(*store.User)
	return u, ok
}

// requireUser is the shared guard every authenticated handler opens
// with; it only fires if a handler is ever mounted without the
// session-auth middleware in front of it.
func requireUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*store.User, bool) {
	u, ok := UserFromRequest(r)
	if !ok {
		WriteError(w, types.NewError(types.ErrUnauthenticated, "missing authenticated session").WithHTTPStatus(401), logger)
		return nil, false
	}
	return u, true
}
