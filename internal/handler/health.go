package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health reporta a prontidão do serviço checando Postgres e Redis.
// Usado por load balancer e orquestrador; não exige autenticação.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{}
		ok := true

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["postgres"] = "indisponível"
			ok = false
		} else {
			checks["postgres"] = "ok"
		}

		if rdb.Ping(ctx).Err() != nil {
			checks["redis"] = "indisponível"
			ok = false
		} else {
			checks["redis"] = "ok"
		}

		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ok": ok, "checks": checks})
	}
}
