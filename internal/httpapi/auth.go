package httpapi

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

type subjectKey struct{}

// requireToken rejects requests without a valid bearer token when auth is
// configured. The token subject is kept for the ownership check.
func (s *server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		sub, err := s.auth.Authenticate(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected request: bad bearer token")
			httpError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))
	})
}

// tokenSubject returns the verified token subject, or "" when auth is off or
// the token had none.
func tokenSubject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
