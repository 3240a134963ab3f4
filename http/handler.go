package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tilestream/viewer"
	"github.com/aukilabs/tilestream/websocket"
	"github.com/segmentio/encoding/json"
	xwebsocket "golang.org/x/net/websocket"
)

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

// HandleStats writes the stats of the last frame as JSON.
func HandleStats(stats func() viewer.FrameStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := json.Marshal(stats())
		if err != nil {
			logs.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// HandleFrames streams the frame stats of the source over a WebSocket. The
// every query parameter sets the interval between sent frames.
func HandleFrames(src websocket.FrameSource) http.Handler {
	return xwebsocket.Server{
		Handler: func(conn *xwebsocket.Conn) {
			defer conn.Close()

			every, _ := strconv.Atoi(conn.Request().URL.Query().Get("every"))
			websocket.Handle(conn.Request().Context(), conn, src, every)
		},
	}
}

// HandleWithCORS allows cross origin requests on the given handler.
func HandleWithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		h.ServeHTTP(w, r)
	})
}
