// internal/handlers/api.go

// Package handlers exposes the HTTP surface: account and friend
// endpoints, chat history reads, and the game WebSocket upgrade.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/auth"
)

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// isUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error, pgErr **pgconn.PgError) bool {
	return errors.As(err, pgErr) && (*pgErr).Code == "23505"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// requestToken pulls the JWT from the Authorization header or the
// auth_token cookie.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}

// authenticate resolves the request's JWT to a user id, writing the
// error response itself on failure.
func authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := requestToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing session token")
		return "", false
	}
	uid, err := auth.AuthenticateToken(token)
	if err != nil {
		writeError(w, http.StatusForbidden, "invalid token")
		return "", false
	}
	return uid, true
}
