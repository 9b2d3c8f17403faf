package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CallbackTokenHeader carries the shared secret on gateway callbacks.
const CallbackTokenHeader = "X-Callback-Token"

// CallbackToken rejects requests whose CallbackTokenHeader does not match
// token. An empty token disables the check, which is only sensible in
// development.
func CallbackToken(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		got := []byte(c.GetHeader(CallbackTokenHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			if log := GetLogger(c); log != nil {
				log.Warn("Rejected gateway callback", map[string]interface{}{
					"request_id": GetRequestID(c),
					"ip":         c.ClientIP(),
				})
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":       "UNAUTHORIZED",
					"message":    "Invalid callback token",
					"request_id": GetRequestID(c),
				},
			})
			return
		}
		c.Next()
	}
}
