// internal/handlers/chat.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fourrow/server/internal/chat"
	"github.com/fourrow/server/internal/models"
)

type chatPageResponse struct {
	Messages []models.ChatMessage `json:"messages"`
	More     bool                 `json:"more_available"`
}

// ChatHistoryHandler serves one page of a chat thread, newest first.
// GET /chat/{threadID}?before_id=<index>
func ChatHistoryHandler(archive *chat.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authenticate(w, r); !ok {
			return
		}
		threadID := strings.TrimPrefix(r.URL.Path, "/chat/")
		if threadID == "" || strings.Contains(threadID, "/") {
			writeError(w, http.StatusBadRequest, "missing thread id")
			return
		}

		var before int64
		if s := r.URL.Query().Get("before_id"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, "invalid before parameter")
				return
			}
			before = v
		}

		msgs, more, err := archive.ReadPage(r.Context(), threadID, before)
		if err != nil {
			logrus.WithError(err).Error("failed to read chat page")
			writeError(w, http.StatusInternalServerError, "failed to read chat history")
			return
		}
		if msgs == nil {
			msgs = []models.ChatMessage{}
		}
		writeJSON(w, http.StatusOK, chatPageResponse{Messages: msgs, More: more})
	}
}

type chatPostRequest struct {
	Content string `json:"content"`
}

// ChatPostHandler appends a message to a thread on behalf of the
// authenticated user. POST /chat/{threadID}
func ChatPostHandler(archive *chat.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := authenticate(w, r)
		if !ok {
			return
		}
		threadID := strings.TrimPrefix(r.URL.Path, "/chat/")
		if threadID == "" || strings.Contains(threadID, "/") {
			writeError(w, http.StatusBadRequest, "missing thread id")
			return
		}

		var req chatPostRequest
		if err := decodeBody(r, &req); err != nil || req.Content == "" {
			writeError(w, http.StatusBadRequest, "missing content")
			return
		}
		if len(req.Content) > 2000 {
			writeError(w, http.StatusBadRequest, "message too long")
			return
		}

		msg, err := archive.Append(r.Context(), threadID, &uid, req.Content)
		if err != nil {
			logrus.WithError(err).Error("failed to append chat message")
			writeError(w, http.StatusInternalServerError, "failed to store message")
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
