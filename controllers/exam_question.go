package controllers

import (
	"net/http"
	"strings"
	"time"

	"emgurus-api/config"
	"emgurus-api/models"
	"emgurus-api/services"
	"emgurus-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type examQuestionPayload struct {
	Title        string   `json:"title"`
	Stem         string   `json:"stem"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index"`
	Explanation  *string  `json:"explanation"`
	Topic        *string  `json:"topic"`
	Difficulty   *string  `json:"difficulty"`
}

// CreateExamQuestion creates a draft exam question owned by the caller.
func CreateExamQuestion(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req examQuestionPayload
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
		Kind:           models.ContentKindExamQuestion,
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	detail := models.ExamQuestionDetail{
		ContentItemID: item.ContentItemID,
		Stem:          req.Stem,
		Explanation:   req.Explanation,
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
		CreateAt:      now,
		UpdateAt:      now,
	}
	if req.CorrectIndex != nil {
		detail.CorrectIndex = *req.CorrectIndex
	}
	if err := detail.SetOptions(req.Options); err != nil {
		tx.Rollback()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid options"})
		return
	}
	if err := tx.Create(&detail).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create question"})
		return
	}

	item.ExamDetail = &detail
	c.JSON(http.StatusCreated, gin.H{"success": true, "item": item})
}

// UpdateExamQuestion edits a draft exam question.
func UpdateExamQuestion(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req examQuestionPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := loadContentItem(itemID, models.ContentKindExamQuestion)
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
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update question"})
			return
		}
	}

	detailUpdates := map[string]interface{}{"update_at": now}
	if strings.TrimSpace(req.Stem) != "" {
		detailUpdates["stem"] = req.Stem
	}
	if req.Options != nil {
		detail := models.ExamQuestionDetail{}
		if err := detail.SetOptions(req.Options); err != nil {
			tx.Rollback()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid options"})
			return
		}
		detailUpdates["options_json"] = detail.OptionsJSON
	}
	if req.CorrectIndex != nil {
		detailUpdates["correct_index"] = *req.CorrectIndex
	}
	if req.Explanation != nil {
		detailUpdates["explanation"] = *req.Explanation
	}
	if req.Topic != nil {
		detailUpdates["topic"] = *req.Topic
	}
	if req.Difficulty != nil {
		detailUpdates["difficulty"] = *req.Difficulty
	}
	if err := tx.Model(&models.ExamQuestionDetail{}).
		Where("content_item_id = ?", item.ContentItemID).
		Updates(detailUpdates).Error; err != nil {
		tx.Rollback()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update question"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update question"})
		return
	}

	updated, err := loadContentItem(itemID, models.ContentKindExamQuestion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": updated})
}

// GetMyExamQuestions lists the caller's questions, optionally by state.
func GetMyExamQuestions(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	query := config.DB.Preload("ExamDetail").Preload("Reviewer").
		Where("kind = ? AND delete_at IS NULL", models.ContentKindExamQuestion)
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch questions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "items": items, "total": len(items)})
}

// GetExamQuestion returns one question visible to the caller.
func GetExamQuestion(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	item, err := loadContentItem(itemID, models.ContentKindExamQuestion)
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
