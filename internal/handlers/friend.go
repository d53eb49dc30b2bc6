// internal/handlers/friend.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/database"
	"github.com/fourrow/server/internal/models"
)

type friendRequest struct {
	UserID string `json:"user_id"`
}

// FriendAddHandler files a friend request to another user.
func FriendAddHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req friendRequest
	if err := decodeBody(r, &req); err != nil || !models.ValidUserID(req.UserID) {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if req.UserID == uid {
		writeError(w, http.StatusBadRequest, "cannot befriend yourself")
		return
	}
	if _, err := database.GetUserByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "no such user")
		return
	}
	already, err := database.AreFriends(r.Context(), uid, req.UserID)
	if err != nil {
		logrus.WithError(err).Error("friend lookup failed")
		writeError(w, http.StatusInternalServerError, "friend lookup failed")
		return
	}
	if already {
		writeError(w, http.StatusConflict, "already friends")
		return
	}
	if err := database.InsertFriendRequest(r.Context(), uid, req.UserID); err != nil {
		logrus.WithError(err).Error("failed to insert friend request")
		writeError(w, http.StatusInternalServerError, "failed to file request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FriendAcceptHandler accepts a pending request from user_id.
func FriendAcceptHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req friendRequest
	if err := decodeBody(r, &req); err != nil || !models.ValidUserID(req.UserID) {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	// The requester is user1; the accepting side is user2.
	if err := database.AcceptFriend(r.Context(), req.UserID, uid); err != nil {
		writeError(w, http.StatusNotFound, "no pending request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FriendListHandler lists all friend relations of the caller.
func FriendListHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticate(w, r)
	if !ok {
		return
	}
	fs, err := database.ListFriends(r.Context(), uid)
	if err != nil {
		logrus.WithError(err).Error("failed to list friends")
		writeError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}
	if fs == nil {
		fs = []models.Friend{}
	}
	writeJSON(w, http.StatusOK, fs)
}

// FriendRemoveHandler deletes a relation in both directions.
func FriendRemoveHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := authenticate(w, r)
	if !ok {
		return
	}
	var req friendRequest
	if err := decodeBody(r, &req); err != nil || !models.ValidUserID(req.UserID) {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if err := database.RemoveFriend(r.Context(), uid, req.UserID); err != nil {
		logrus.WithError(err).Error("failed to remove friend")
		writeError(w, http.StatusInternalServerError, "failed to remove friend")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
