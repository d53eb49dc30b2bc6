// internal/handlers/user.go
package handlers

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/database"
	"github.com/fourrow/server/internal/models"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserCreateHandler registers a new account.
func UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user := models.User{Username: req.Username, Email: req.Email, Password: req.Password}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		var pgErr *pgconn.PgError
		if isUniqueViolation(err, &pgErr) {
			writeError(w, http.StatusConflict, "username or email already taken")
			return
		}
		logrus.WithError(err).Error("failed to create user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, models.UserInfo{ID: user.ID, Username: user.Username})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// UserLoginHandler checks credentials and issues a JWT, both in the
// body and as a cookie.
func UserLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusForbidden, "incorrect credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// UserMeHandler returns the authenticated user's own record.
func UserMeHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticate(w, r)
	if !ok {
		return
	}
	u, err := database.GetUserByID(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UserSearchHandler finds users by username substring.
func UserSearchHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticate(w, r); !ok {
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	infos, err := database.SearchUsers(r.Context(), q, 20)
	if err != nil {
		logrus.WithError(err).Error("user search failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if infos == nil {
		infos = []models.UserInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// UserGamesHandler lists the authenticated user's recent ranked
// games, newest first.
func UserGamesHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticate(w, r)
	if !ok {
		return
	}
	games, err := database.ListPlayedGames(r.Context(), uid, 50)
	if err != nil {
		logrus.WithError(err).Error("failed to list played games")
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if games == nil {
		games = []models.PlayedGame{}
	}
	writeJSON(w, http.StatusOK, games)
}
