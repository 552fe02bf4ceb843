package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/middleware"
	"github.com/lektorek-app/lektorek-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// currentActor resolves the acting user, or a zero actor when the route is
// unauthenticated.
func currentActor(c *gin.Context) models.ActorContext {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.ActorContext{}
	}
	return claims.Actor()
}
