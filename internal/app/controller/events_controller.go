package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/storefront-sync/internal/middleware"
	ws "github.com/ikkim/storefront-sync/internal/websocket"
)

type EventsController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewEventsController accepts browser connections only from allowedOrigins.
// Requests without an Origin header are not from a browser and are accepted.
func NewEventsController(hub *ws.Hub, allowedOrigins []string) *EventsController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &EventsController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Stream upgrades to a websocket that receives {"type": "<topic>"} frames
// GET /api/v1/events
func (ctrl *EventsController) Stream(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error":  err.Error(),
			"origin": c.GetHeader("Origin"),
		})
		return
	}

	log.Debug("Event stream opened", nil)
	ctrl.hub.Serve(conn)
}
