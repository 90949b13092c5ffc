package websocket

import (
	"net/http"

	"terretahub/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var xpUpgrader = websocket.Upgrader{
	// Origins are already restricted by the CORS middleware in front of the router.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeXP upgrades the request and streams XP events to the caller. The
// token comes from the Authorization header or, for browsers, ?token=.
func (h *Hub) ServeXP(c *gin.Context) {
	tokenString, ok := utils.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
		return
	}

	claims, err := utils.ParseJWTToken(tokenString)
	if err != nil || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := xpUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{Conn: conn, UserID: claims.UserID}
	h.Register(client)
	defer h.Unregister(client)

	client.SafeWriteJSON(gin.H{
		"type":    "connected",
		"message": "Connected to XP updates",
		"userId":  claims.UserID,
	})

	// Keep reading so close frames and pings are processed
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("xp websocket closed", zap.Error(err))
			}
			return
		}
	}
}
