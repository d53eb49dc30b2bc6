// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is an HTTP middleware that records method, path, status and
// duration of each request through logrus.
func Log(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sw.status,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("http request")
		})
	}
}

// Recover converts handler panics into 500 responses instead of
// killing the process.
func Recover(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithField("panic", rec).Error("handler panic")
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LogWebSocketConnect records a socket upgrade. Upgraded connections
// bypass the Log middleware's status accounting, so the websocket
// handler calls these directly.
func LogWebSocketConnect(logger *logrus.Logger, remote, path string) {
	logger.WithFields(logrus.Fields{
		"remote": remote,
		"path":   path,
	}).Info("websocket connected")
}

// LogWebSocketDisconnect records the end of a websocket connection and
// the read error that ended it, if any.
func LogWebSocketDisconnect(logger *logrus.Logger, remote, path string, err error) {
	entry := logger.WithFields(logrus.Fields{
		"remote": remote,
		"path":   path,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("websocket disconnected")
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController so
// connection upgrades (Hijack, flushing) work through the status
// capture.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
