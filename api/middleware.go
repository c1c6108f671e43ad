package api

import (
	"net/http"
	"strings"

	"github.com/warp/resident-payments/auth"
)

// Authenticate resolves the bearer token into an auth.Actor on the request
// context. Requests without a valid token get 401 before reaching a handler.
//
// Browsers cannot set headers on an EventSource, so the token is also read
// from the access_token query parameter.
func Authenticate(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			actor, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid bearer token", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// actorFrom returns the authenticated actor. Outside Authenticate it is the
// zero Actor, which every capability check refuses.
func actorFrom(r *http.Request) auth.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}
