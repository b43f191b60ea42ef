package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS libera o acesso dos terminais de atendimento, que rodam em outra
// origem. A API é somente JSON com Bearer token, então a política pode ser
// permissiva.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
