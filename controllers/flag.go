package controllers

import (
	"net/http"
	"strings"

	"emgurus-api/config"
	"emgurus-api/models"
	"emgurus-api/services"

	"github.com/gin-gonic/gin"
)

type createFlagRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreateFlag files a quality report against a content item.
func CreateFlag(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	flag, err := services.OpenFlag(config.DB, itemID, user, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "flag": flag, "ticket": flag.Ticket})
}

// GetFlags lists flags for triage, optionally filtered by status.
func GetFlags(c *gin.Context) {
	query := config.DB.Preload("ContentItem").Preload("Flagger").Preload("Assignee")

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		switch status {
		case models.FlagStatusOpen, models.FlagStatusInReview, models.FlagStatusResolved,
			models.FlagStatusDismissed, models.FlagStatusArchived:
			query = query.Where("status = ?", status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
	}

	var flags []models.ContentFlag
	if err := query.Order("created_at DESC").Find(&flags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "flags": flags, "total": len(flags)})
}

// GetMyFlags lists flags the caller has raised.
func GetMyFlags(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var flags []models.ContentFlag
	if err := config.DB.Preload("ContentItem").
		Where("flagged_by = ?", user.UserID).
		Order("created_at DESC").
		Find(&flags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "flags": flags, "total": len(flags)})
}

// GetMyAssignedFlags lists open flags assigned to the caller.
func GetMyAssignedFlags(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var flags []models.ContentFlag
	if err := config.DB.Preload("ContentItem").Preload("Flagger").
		Where("assigned_to = ? AND status = ?", user.UserID, models.FlagStatusInReview).
		Order("created_at ASC").
		Find(&flags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch flags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "flags": flags, "total": len(flags)})
}

type assignFlagRequest struct {
	AssignTo int `json:"assign_to" binding:"required"`
}

type resolveFlagRequest struct {
	Note string `json:"note"`
}

// AssignFlag puts a flag in review with an assignee.
func AssignFlag(c *gin.Context) {
	flagAction(c, services.FlagActionAssign)
}

// ResolveFlag closes a flag as resolved.
func ResolveFlag(c *gin.Context) {
	flagAction(c, services.FlagActionResolve)
}

// DismissFlag closes a flag as dismissed.
func DismissFlag(c *gin.Context) {
	flagAction(c, services.FlagActionDismiss)
}

// ArchiveFlag archives a closed flag.
func ArchiveFlag(c *gin.Context) {
	flagAction(c, services.FlagActionArchive)
}

func flagAction(c *gin.Context, action string) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	flagID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	opts := services.FlagUpdateOptions{}
	switch action {
	case services.FlagActionAssign:
		var req assignFlagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		opts.AssignTo = &req.AssignTo
	case services.FlagActionResolve, services.FlagActionDismiss:
		var req resolveFlagRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		opts.ResolutionNote = req.Note
	}

	flag, err := services.UpdateFlag(config.DB, flagID, action, user, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "flag": flag})
}
