package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/bryanwahyu/pattern-analyzer/internal/application/stream"
	"github.com/bryanwahyu/pattern-analyzer/internal/logging"
	"github.com/bryanwahyu/pattern-analyzer/internal/metrics"
)

const writeWait = 10 * time.Second

// newUpgrader accepts any origin when origins is empty or contains "*".
func newUpgrader(origins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// GET /ws/stream
func (r *Router) handleStream(w http.ResponseWriter, req *http.Request) {
	log := logging.Ctx(req.Context())

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade sudah nulis response error
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()
	log.Info().Msg("stream connected")

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// client tidak kirim apa-apa; read gagal = client sudah pergi
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = r.streamGen.Run(ctx, func(ev stream.Event) error {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return err
		}
		metrics.StreamEventsSent.Inc()
		return nil
	})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	log.Info().AnErr("reason", err).Msg("stream disconnected")
}
