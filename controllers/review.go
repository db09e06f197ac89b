package controllers

import (
	"net/http"

	"emgurus-api/config"
	"emgurus-api/models"
	"emgurus-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type transitionRequest struct {
	Note string `json:"note"`
}

type publishRequest struct {
	Note       string `json:"note"`
	IsFeatured *bool  `json:"is_featured"`
}

type assignRequest struct {
	ReviewerID int    `json:"reviewer_id" binding:"required"`
	Note       string `json:"note"`
	Supersede  bool   `json:"supersede"`
}

// SubmitContent moves a draft into review.
func SubmitContent(kind string) gin.HandlerFunc {
	return transitionHandler(kind, services.ActionSubmit)
}

// RequestChanges sends an in-review item back to the author as a draft.
func RequestChanges(kind string) gin.HandlerFunc {
	return transitionHandler(kind, services.ActionRequestChanges)
}

// RejectContent archives an in-review item.
func RejectContent(kind string) gin.HandlerFunc {
	return transitionHandler(kind, services.ActionReject)
}

func transitionHandler(kind string, action services.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		itemID, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		if _, err := loadContentItem(itemID, kind); err != nil {
			respondError(c, err)
			return
		}

		var req transitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		item, err := services.Transition(config.DB, itemID, action, user, services.TransitionOptions{
			Note:      req.Note,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "status": item.State, "item": item})
	}
}

// PublishContent publishes an in-review item. For blogs the request may
// also toggle the featured flag, saved in the same transaction.
func PublishContent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		itemID, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		if _, err := loadContentItem(itemID, kind); err != nil {
			respondError(c, err)
			return
		}

		var req publishRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		opts := services.TransitionOptions{
			Note:      req.Note,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if kind == models.ContentKindBlog && req.IsFeatured != nil {
			featured := *req.IsFeatured
			opts.ApplyDetail = func(tx *gorm.DB, item *models.ContentItem) error {
				return tx.Model(&models.BlogPostDetail{}).
					Where("content_item_id = ?", item.ContentItemID).
					Update("is_featured", featured).Error
			}
		}

		item, err := services.Transition(config.DB, itemID, services.ActionPublish, user, opts)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "status": item.State, "item": item})
	}
}

// AssignContentReviewer assigns a guru to an in-review item (admin only).
func AssignContentReviewer(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		itemID, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		if _, err := loadContentItem(itemID, kind); err != nil {
			respondError(c, err)
			return
		}

		var req assignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		assignment, err := services.AssignReviewer(config.DB, itemID, req.ReviewerID, user, services.AssignOptions{
			Note:      req.Note,
			Supersede: req.Supersede,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "assignment": assignment})
	}
}

// GetReviewNotes returns the append-only feedback log for an item.
func GetReviewNotes(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}
		itemID, ok := parseIDParam(c, "id")
		if !ok {
			return
		}
		item, err := loadContentItem(itemID, kind)
		if err != nil {
			respondError(c, err)
			return
		}
		if !canViewItem(user, item) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		var notes []models.ReviewNote
		if err := config.DB.Preload("Author").
			Where("content_item_id = ?", itemID).
			Order("created_at ASC").
			Find(&notes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch review notes"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "notes": notes, "total": len(notes)})
	}
}
