package controllers

import (
	"net/http"
	"strings"

	"emgurus-api/config"
	"emgurus-api/models"
	"emgurus-api/services"

	"github.com/gin-gonic/gin"
)

// GetReviewQueue lists items in review for the admin queue. The stage
// filter splits submitted (unassigned) from assigned items using the
// explicit substate column.
func GetReviewQueue(c *gin.Context) {
	query := config.DB.Preload("Author").Preload("Reviewer").
		Preload("BlogDetail").Preload("ExamDetail").
		Where("state = ? AND delete_at IS NULL", models.StateInReview)

	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		if kind != models.ContentKindBlog && kind != models.ContentKindExamQuestion {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid kind filter"})
			return
		}
		query = query.Where("kind = ?", kind)
	}

	switch stage := strings.TrimSpace(c.Query("stage")); stage {
	case "":
		// all in-review items
	case "submitted", models.SubstateUnassigned:
		query = query.Where("review_substate = ?", models.SubstateUnassigned)
	case models.SubstateAssigned:
		query = query.Where("review_substate = ?", models.SubstateAssigned)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stage filter"})
		return
	}

	var items []models.ContentItem
	if err := query.Order("submitted_at ASC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch review queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "items": items, "total": len(items)})
}

// GetItemHistory returns the status history of one item (admin only).
func GetItemHistory(c *gin.Context) {
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var history []models.ContentStatusHistory
	if err := config.DB.Where("content_item_id = ?", itemID).
		Order("created_at ASC").
		Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "history": history, "total": len(history)})
}

type resolveAssignmentRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// ResolveAssignment resolves a pending assignment without a lifecycle
// transition (admin bookkeeping; idempotent per outcome).
func ResolveAssignment(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	assignmentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req resolveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := services.CompleteAssignment(config.DB, assignmentID, req.Outcome, user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetGurus lists active users holding the guru role, for the assignment
// picker.
func GetGurus(c *gin.Context) {
	var gurus []models.User
	if err := config.DB.
		Joins("JOIN user_roles ON user_roles.user_id = users.user_id").
		Where("user_roles.role_id = ? AND users.delete_at IS NULL", models.RoleGuru).
		Find(&gurus).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch gurus"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "gurus": gurus, "total": len(gurus)})
}
