package http

import (
	"net/http"
	"strings"
	"time"

	"butterfly-quiz-service/internal/app"
	"butterfly-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ScoreStream pushes leaderboard snapshots for the authenticated user over a
// websocket, so clients re-render scores without polling.
type ScoreStream struct {
	feed      *app.ScoreFeed
	directory app.UserDirectory
	log       *logrus.Logger
	upgrader  websocket.Upgrader
}

func NewScoreStream(feed *app.ScoreFeed, directory app.UserDirectory, log *logrus.Logger) *ScoreStream {
	if log == nil {
		log = logrus.New()
	}
	return &ScoreStream{
		feed:      feed,
		directory: directory,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS authenticates via a bearer header or ?token= query parameter
// (browsers cannot set websocket headers) and streams leaderboard updates.
func (h *ScoreStream) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token required")
		return
	}

	user, err := h.directory.Profile(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(user.Username)
	defer cancel()

	if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: domain.NewLeaderboard(user, time.Now())}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain reads so client close frames are noticed; inbound
		// messages carry no meaning on this stream.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: update}); err != nil {
				h.log.WithError(err).Debug("ws write failed")
				return
			}
		case <-done:
			return
		}
	}
}
