package controller

import (
	"net/http"

	"github.com/achlys/whimsical-backend/internal/middleware"
	ws "github.com/achlys/whimsical-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type NoticeController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewNoticeController accepts websocket upgrades from allowedOrigins. A "*"
// entry allows any origin; requests without an Origin header are allowed.
func NewNoticeController(hub *ws.Hub, allowedOrigins []string) *NoticeController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &NoticeController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// CartNotices streams cart_updated, cart_adjusted and order_placed events
// GET /api/v1/ws/cart?session=<id>
func (ctrl *NoticeController) CartNotices(c *gin.Context) {
	log := loggerFrom(c)
	session := middleware.GetCartSession(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, session)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"session": session,
	})
}
