package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sprite-ai/relnotes/internal/collect"
	"github.com/sprite-ai/relnotes/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // the server is meant for local use
	},
}

// WebSocket message types from client.
const (
	wsMsgAggregate = "aggregate"
)

// WebSocket message types to client.
const (
	wsMsgSession  = "session"
	wsMsgProgress = "progress"
	wsMsgRelease  = "release"
	wsMsgError    = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsAggregate is the payload for "aggregate" messages.
type wsAggregate struct {
	Version string   `json:"version"`
	Repos   []string `json:"repos,omitempty"`
}

type wsSession struct {
	ID string `json:"id"`
}

// wsConn pairs a connection with its session logger.
type wsConn struct {
	conn *websocket.Conn
	log  *logger.Logger
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	c := &wsConn{conn: conn, log: s.log.With("session", id)}
	c.log.Debug("websocket session started")
	c.send(wsMsgSession, wsSession{ID: id})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgAggregate:
			s.handleWSAggregate(r, c, msg.Data)
		default:
			c.sendError("unknown message type: " + msg.Type)
		}
	}
}

// handleWSAggregate runs a live aggregation, streaming one progress message
// per repository before the release itself.
func (s *Server) handleWSAggregate(r *http.Request, c *wsConn, data json.RawMessage) {
	if s.opts.Source == nil {
		c.sendError("no source configured")
		return
	}
	var req wsAggregate
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError("invalid aggregate data")
		return
	}
	if strings.TrimSpace(req.Version) == "" {
		c.sendError("version is required")
		return
	}
	repos := req.Repos
	if len(repos) == 0 {
		repos = s.opts.Repos
	}
	if len(repos) == 0 {
		c.sendError("repos is required")
		return
	}

	c.log.Info("aggregating", "version", req.Version, "repos", len(repos))
	res, err := collect.Run(r.Context(), s.opts.Source, req.Version, repos, collect.Options{
		Concurrency: s.opts.Concurrency,
		Policy:      s.opts.Policy,
		Logger:      c.log,
		Clock:       s.opts.Clock,
		Progress:    func(ev collect.Event) { c.send(wsMsgProgress, ev) },
	})
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.send(wsMsgRelease, releaseResponse{Release: res.Release, Skipped: skippedList(res)})
}

func (c *wsConn) send(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.log.Warn("ws marshal", "error", err)
		return
	}
	msg := wsMessage{Type: msgType, Data: raw}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Warn("ws write", "error", err)
	}
}

func (c *wsConn) sendError(errMsg string) {
	c.send(wsMsgError, map[string]string{"message": errMsg})
}
