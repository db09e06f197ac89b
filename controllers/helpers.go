package controllers

import (
	"net/http"
	"strconv"

	"emgurus-api/middleware"
	"emgurus-api/models"
	"emgurus-api/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP responses. AppErrors carry
// their own status and machine-readable code; anything else is a 500.
func respondError(c *gin.Context, err error) {
	if appErr, ok := services.AsAppError(err); ok {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// requireUser fetches the authenticated user or writes a 401.
func requireUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	return user, true
}

// parseIDParam parses a positive integer path parameter or writes a 400.
func parseIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
