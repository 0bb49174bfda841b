package web

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"evalbot/internal/logger"
	"evalbot/internal/security"
)

// BasicAuth checks HTTP basic credentials against user and an argon2id
// password hash.
func BasicAuth(user, passHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, pass, ok := c.Request.BasicAuth()
		if ok && subtle.ConstantTimeCompare([]byte(name), []byte(user)) == 1 {
			match, err := security.VerifyHash(pass, passHash)
			if err != nil {
				logger.Errorf("Admin password hash is unusable: %v", err)
			}
			if match {
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Basic realm="evalbot"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
}

// RateLimit rejects clients that exceed tracker's limit with 429.
func RateLimit(tracker *security.RequestTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait := tracker.Allow(c.ClientIP())
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
