package server

import (
	"net/http"
	"sync"
	"time"

	"docshare/internal/middleware"
	"docshare/internal/transport/httpdto"
	"docshare/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Notifier pushes a reload hint to a user's connected presentation
// clients whenever their session state changes. It carries no payload:
// clients fetch the snapshot over HTTP, keeping the load path the
// single source of truth.
type Notifier struct {
	upgrader websocket.Upgrader
	lg       *logger.Logger

	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

type stateChanged struct {
	Type string `json:"type"`
}

func NewNotifier(lg *logger.Logger) *Notifier {
	return &Notifier{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		lg:    lg,
		conns: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Handle upgrades an authenticated request and keeps the connection
// registered until the peer goes away.
func (n *Notifier) Handle(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := n.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if n.lg != nil {
			n.lg.Errorf("websocket upgrade: %s", err.Error())
		}
		return
	}

	n.add(userID, conn)
	defer n.remove(userID, conn)

	// Inbound frames are not part of the protocol; reading only
	// detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Notify tells every connection of userID that the session state
// changed. Dead connections are dropped.
func (n *Notifier) Notify(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for conn := range n.conns[userID] {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(stateChanged{Type: "state_changed"}); err != nil {
			conn.Close()
			delete(n.conns[userID], conn)
		}
	}
}

func (n *Notifier) add(userID string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conns[userID] == nil {
		n.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	n.conns[userID][conn] = struct{}{}
}

func (n *Notifier) remove(userID string, conn *websocket.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.conns[userID], conn)
	if len(n.conns[userID]) == 0 {
		delete(n.conns, userID)
	}
	conn.Close()
}
