package httpapi

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/consultation-platform/internal/apperr"
	"github.com/Leganyst/consultation-platform/internal/lifecycle"
)

// ActorResolver превращает bearer-токен в Actor.
type ActorResolver interface {
	Resolve(ctx context.Context, token string) (lifecycle.Actor, error)
}

const actorKey = "actor"

// Authenticate кладёт Actor в контекст gin. Без required анонимный запрос
// проходит дальше с нулевым Actor, но битый токен всё равно отклоняется.
func Authenticate(r ActorResolver, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			if required {
				abortWithError(c, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
				return
			}
			c.Next()
			return
		}
		actor, err := r.Resolve(c.Request.Context(), strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func RequireRole(role lifecycle.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := lifecycle.RequireRole(actorFrom(c), role); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) lifecycle.Actor {
	v, _ := c.Get(actorKey)
	a, _ := v.(lifecycle.Actor)
	return a
}

// requestLogger пишет одну строку на запрос.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if a := actorFrom(c); a.Authenticated() {
			attrs = append(attrs, "actor_id", a.ID)
		}
		if c.Writer.Status() >= 500 {
			attrs = append(attrs, "error", c.Errors.String())
			log.ErrorContext(c.Request.Context(), "http request", attrs...)
			return
		}
		log.InfoContext(c.Request.Context(), "http request", attrs...)
	}
}
