package access

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/acme-health/labor/core/logger"
	"github.com/acme-health/labor/directory"
)

// NewJwtMiddleware returns a middleware handler to validate JWT bearer
// token signed with the shared HS256 secret. The token subject is the
// username; roles are resolved through the user directory.
//
// This is a final handler with regards to the bearer token. It will return
// http.StatusUnauthorized when a token is available but insufficient to
// authorize the request.
func NewJwtMiddleware(secret []byte, dir directory.Directory) mux.MiddlewareFunc {
	authCache := NewAuthorizationCache()

	keyLookup := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
				tokenString = bearer[7:]
			}
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			rlog := logger.FromContext(r.Context())

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, keyLookup)
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			auth := authCache.Read(tokenString)
			if auth == nil {
				account, err := dir.FindByUsername(r.Context(), claims.Subject)
				if err == directory.ErrNotFound {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				if err != nil {
					rlog.WithError(err).Errorln("Error 1102: cannot look up account")
					http.Error(w, "Error 1102", http.StatusInternalServerError)
					return
				}
				auth = &Authorization{Username: account.Username, Roles: account.Roles}
				authCache.Write(tokenString, auth)
			}

			ctx := auth.ContextWithAuthorization(r.Context())
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Username)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
