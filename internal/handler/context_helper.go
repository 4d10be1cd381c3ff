package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siwes-logbook-api/internal/middleware"
	"github.com/noah-isme/siwes-logbook-api/internal/models"
)

// claimsFromContext extracts the JWT claims stored by the auth middleware.
// Returns nil when the route is reached without authentication.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
