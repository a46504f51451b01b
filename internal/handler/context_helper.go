package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/transcript-api/internal/middleware"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/response"
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

// studentMatric resolves the matriculation number of the calling student or writes a 401.
func studentMatric(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if !claims.IsStudent() {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.MatricNo, true
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
