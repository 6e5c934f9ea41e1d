package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/a360/curation-service/internal/promotion"
)

const actorKey = "actor"

// ActorMiddleware records the identity performing curation actions from the
// X-Actor header. The service runs behind an already-authenticated identity;
// the header is attribution, not auth.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader("X-Actor"))
		if actor == "" {
			actor = promotion.DefaultActor
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) string {
	if v, ok := c.Get(actorKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return promotion.DefaultActor
}
