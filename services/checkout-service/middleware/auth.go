package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/beacon-market/services/common/auth"
)

const EmailContextKey = "email"

// AuthMiddleware resolves the buyer identity from a bearer token checked
// against verifier. The X-User-Email header and user_email cookie are only
// read when trustGatewayHeaders is set and no verifier is configured, i.e.
// when a gateway in front of the service has already authenticated the call.
func AuthMiddleware(verifier *auth.TokenVerifier, trustGatewayHeaders bool) gin.HandlerFunc {
	headersTrusted := trustGatewayHeaders && !verifier.Enabled()

	return func(c *gin.Context) {
		var email string

		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			if !verifier.Enabled() {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			e, err := verifier.EmailFromToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
				return
			}
			email = e
		}

		if email == "" && headersTrusted {
			email = c.GetHeader("X-User-Email")
		}
		if email == "" && headersTrusted {
			if v, err := c.Cookie("user_email"); err == nil {
				email = v
			}
		}

		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(EmailContextKey, email)
		c.Next()
	}
}

func GetBuyerEmail(c *gin.Context) (string, error) {
	if val, ok := c.Get(EmailContextKey); ok {
		if email, ok := val.(string); ok && email != "" {
			return email, nil
		}
	}
	return "", errors.New("email not found in context")
}
