package middleware

import (
	"net/http"
	"strings"

	userRepo "anoa.com/runclub/internal/modules/user/repository"
	"anoa.com/runclub/pkg/jwtauth"
	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	issuer   *jwtauth.Issuer
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, issuer *jwtauth.Issuer) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		issuer:   issuer,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Browsers cannot set headers on websocket upgrades.
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		claims, err := m.issuer.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// RequireAdmin re-reads the role from the store so a demoted admin loses
// access before their token expires.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}

		user, err := m.userRepo.FindByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set("user", user)
		c.Set("user_role", user.Role.Name)
		c.Next()
	}
}
