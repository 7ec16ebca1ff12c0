package access

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/directory"
)

// NewBasicAuthMiddleware returns a middleware handler that validates HTTP
// basic authentication against the user directory.
//
// Requests without credentials pass through unauthenticated, handlers that
// require a caller reject those themselves. Requests with wrong credentials
// are final and answered with http.StatusUnauthorized.
func NewBasicAuthMiddleware(dir directory.Directory) mux.MiddlewareFunc {
	authCache := NewAuthorizationCache()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok {
				h.ServeHTTP(w, r) // no credentials no auth, moving on
				return
			}

			rlog := logger.FromContext(r.Context())

			credential := username + ":" + password
			auth := authCache.Read(credential)
			if auth == nil {
				account, err := dir.FindByUsername(r.Context(), username)
				if err == directory.ErrNotFound {
					http.Error(w, "invalid credentials", http.StatusUnauthorized)
					return
				}
				if err != nil {
					rlog.WithError(err).Errorln("Error 1101: cannot look up account")
					http.Error(w, "Error 1101", http.StatusInternalServerError)
					return
				}
				if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) != nil {
					http.Error(w, "invalid credentials", http.StatusUnauthorized)
					return
				}
				auth = &Authorization{Username: account.Username, Roles: account.Roles}
				authCache.Write(credential, auth)
			}

			ctx := auth.ContextWithAuthorization(r.Context())
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Username)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
