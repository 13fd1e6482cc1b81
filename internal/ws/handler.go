package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// wsConn adapts a gorilla connection to the Conn interface. The mutex
// serializes writes; gorilla allows at most one concurrent writer.
type wsConn struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{id: uuid.NewString(), conn: conn}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(outEvent{Type: event, Data: data})
}

// MakeHandler returns the HTTP handler for the /ws endpoint. It
// upgrades the connection, registers it with the gateway, and feeds
// inbound events to the gateway in arrival order until the client goes
// away.
func MakeHandler(gw *Gateway, allowedOrigins []string, logger *zap.SugaredLogger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := newWSConn(raw)
		defer raw.Close()

		gw.Connect(conn)
		defer gw.Disconnect(conn)

		ctx := r.Context()
		for {
			var evt Event
			if err := raw.ReadJSON(&evt); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debugw("read loop ended", "conn", conn.ID(), "error", err)
				}
				return
			}
			gw.HandleEvent(ctx, conn, evt)
		}
	}
}
