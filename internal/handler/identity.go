package handler

import (
	"context"
	"net/http"
	"strings"
	"unicode"
)

// UserIDHeader carries an optional caller identity. It is recorded on graded
// sessions when the submission body has no user_id. It is not authenticated.
const UserIDHeader = "X-User-ID"

const maxUserIDLen = 64

type userIDKey struct{}

func userIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := cleanUserID(r.Header.Get(UserIDHeader)); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func cleanUserID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxUserIDLen {
		return ""
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("-_.@", r) {
			return ""
		}
	}
	return s
}
