package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"emgurus-api/config"
	"emgurus-api/models"
	"emgurus-api/services"
	"emgurus-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type blogPayload struct {
	Title         string  `json:"title"`
	BodyMarkdown  string  `json:"body_markdown"`
	CoverImageURL *string `json:"cover_image_url"`
	Tags          *string `json:"tags"`
}

// CreateBlog creates a draft blog post owned by the caller.
func CreateBlog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req blogPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.Title = utils.SanitizeInput(req.Title)
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	item := models.ContentItem{
		Kind:           models.ContentKindBlog,
		AuthorID:       user.UserID,
		Title:          req.Title,
		State:          models.StateDraft,
		ReviewSubstate: models.SubstateNone,
		SlugToken:      uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Create(&item).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create blog post"})
		return
	}

	detail := models.BlogPostDetail{
		ContentItemID: item.ContentItemID,
		BodyMarkdown:  req.BodyMarkdown,
		CoverImageURL: req.CoverImageURL,
		Tags:          req.Tags,
		CreateAt:      now,
		UpdateAt:      now,
	}
	if err := tx.Create(&detail).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create blog post"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create blog post"})
		return
	}

	item.BlogDetail = &detail
	c.JSON(http.StatusCreated, gin.H{"success": true, "item": item})
}

// UpdateBlog edits a draft blog post.
func UpdateBlog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req blogPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := loadContentItem(itemID, models.ContentKindBlog)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := services.AuthorizeEdit(user, item); err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if title := utils.SanitizeInput(req.Title); title != "" {
		if err := tx.Model(&models.ContentItem{}).
			Where("content_item_id = ?", item.ContentItemID).
			Updates(map[string]interface{}{"title": title, "updated_at": now}).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update blog post"})
			return
		}
	}

	detailUpdates := map[string]interface{}{"update_at": now}
	if strings.TrimSpace(req.BodyMarkdown) != "" {
		detailUpdates["body_markdown"] = req.BodyMarkdown
	}
	if req.CoverImageURL != nil {
		detailUpdates["cover_image_url"] = *req.CoverImageURL
	}
	if req.Tags != nil {
		detailUpdates["tags"] = *req.Tags
	}
	if err := tx.Model(&models.BlogPostDetail{}).
		Where("content_item_id = ?", item.ContentItemID).
		Updates(detailUpdates).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update blog post"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update blog post"})
		return
	}

	updated, err := loadContentItem(itemID, models.ContentKindBlog)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": updated})
}

// GetMyBlogs lists the caller's blog posts, optionally filtered by state.
func GetMyBlogs(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	query := config.DB.Preload("BlogDetail").Preload("Reviewer").
		Where("kind = ? AND delete_at IS NULL", models.ContentKindBlog)
	if !user.HasRole(models.RoleAdmin) {
		query = query.Where("author_id = ?", user.UserID)
	}
	if state := strings.TrimSpace(c.Query("state")); state != "" {
		if !models.IsValidState(state) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state filter"})
			return
		}
		query = query.Where("state = ?", state)
	}

	var items []models.ContentItem
	if err := query.Order("updated_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch blog posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "items": items, "total": len(items)})
}

// GetBlog returns one blog post visible to the caller.
func GetBlog(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	item, err := loadContentItem(itemID, models.ContentKindBlog)
	if err != nil {
		respondError(c, err)
		return
	}
	if !canViewItem(user, item) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

// GetPublishedBlogs is the public listing; no authentication required.
func GetPublishedBlogs(c *gin.Context) {
	query := config.DB.Preload("Author").Preload("BlogDetail").
		Where("kind = ? AND state = ? AND delete_at IS NULL",
			models.ContentKindBlog, models.StatePublished)

	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		query = query.Joins("JOIN blog_post_details ON blog_post_details.content_item_id = content_items.content_item_id").
			Where("blog_post_details.tags LIKE ?", "%"+tag+"%")
	}

	var items []models.ContentItem
	if err := query.Order("published_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch blog posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "items": items, "total": len(items)})
}

// loadContentItem fetches an item of the expected kind with its details.
func loadContentItem(itemID int, kind string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := config.DB.Preload("Author").Preload("Reviewer").
		Preload("BlogDetail").Preload("ExamDetail").
		Where("content_item_id = ? AND kind = ? AND delete_at IS NULL", itemID, kind).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.NotFound("content item %d not found", itemID)
		}
		return nil, err
	}
	return &item, nil
}

// canViewItem: published items are visible to everyone; otherwise the
// author, the assigned reviewer and admins.
func canViewItem(user *models.User, item *models.ContentItem) bool {
	if item.State == models.StatePublished {
		return true
	}
	if user == nil {
		return false
	}
	if user.HasRole(models.RoleAdmin) || user.UserID == item.AuthorID {
		return true
	}
	return item.ReviewerID != nil && *item.ReviewerID == user.UserID
}
