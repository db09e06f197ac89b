package controllers

import (
	"errors"
	"net/http"

	"emgurus-api/config"
	"emgurus-api/models"
	"emgurus-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetMyAssignments lists the caller's pending review assignments.
func GetMyAssignments(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	status := c.DefaultQuery("status", models.AssignmentStatusPending)
	query := config.DB.Preload("ContentItem").Preload("ContentItem.Author").
		Preload("ContentItem.BlogDetail").Preload("ContentItem.ExamDetail").
		Where("reviewer_id = ?", user.UserID)
	if status != "all" {
		query = query.Where("status = ?", status)
	}

	var assignments []models.ReviewAssignment
	if err := query.Order("assigned_at DESC").Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch assignments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "assignments": assignments, "total": len(assignments)})
}

type guruApproveRequest struct {
	AssignmentID int                  `json:"assignment_id" binding:"required"`
	QuestionID   int                  `json:"question_id" binding:"required"`
	Note         string               `json:"note"`
	Updates      *examQuestionPayload `json:"updates"`
}

type guruRejectRequest struct {
	AssignmentID int    `json:"assignment_id" binding:"required"`
	QuestionID   int    `json:"question_id" binding:"required"`
	Note         string `json:"note" binding:"required"`
}

// GuruSaveAndApprove saves the reviewer's edits to an exam question and
// publishes it in one transaction.
func GuruSaveAndApprove(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req guruApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := checkGuruAssignment(req.AssignmentID, req.QuestionID, user.UserID); err != nil {
		respondError(c, err)
		return
	}

	opts := services.TransitionOptions{
		Note:      req.Note,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if req.Updates != nil {
		updates := *req.Updates
		opts.ApplyDetail = func(tx *gorm.DB, item *models.ContentItem) error {
			return applyExamUpdates(tx, item, &updates)
		}
	}

	item, err := services.Transition(config.DB, req.QuestionID, services.ActionPublish, user, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "question_id": item.ContentItemID, "status": item.State})
}

// GuruRejectQuestion rejects an assigned exam question with a note.
func GuruRejectQuestion(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req guruRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := checkGuruAssignment(req.AssignmentID, req.QuestionID, user.UserID); err != nil {
		respondError(c, err)
		return
	}

	item, err := services.Transition(config.DB, req.QuestionID, services.ActionReject, user, services.TransitionOptions{
		Note:      req.Note,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "question_id": item.ContentItemID, "status": item.State})
}

// checkGuruAssignment verifies the assignment exists, is pending, targets
// the given question and belongs to the caller.
func checkGuruAssignment(assignmentID, questionID, reviewerID int) error {
	var assignment models.ReviewAssignment
	if err := config.DB.Where("assignment_id = ?", assignmentID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.NotFound("assignment %d not found", assignmentID)
		}
		return err
	}
	if assignment.ContentItemID != questionID {
		return services.Validation("assignment %d does not target question %d", assignmentID, questionID)
	}
	if assignment.ReviewerID != reviewerID {
		return services.Forbidden("assignment %d belongs to another reviewer", assignmentID)
	}
	if assignment.Status != models.AssignmentStatusPending {
		return services.Conflict("assignment %d is already resolved as '%s'", assignmentID, assignment.Status)
	}
	return nil
}

func applyExamUpdates(tx *gorm.DB, item *models.ContentItem, updates *examQuestionPayload) error {
	if title := updates.Title; title != "" {
		if err := tx.Model(&models.ContentItem{}).
			Where("content_item_id = ?", item.ContentItemID).
			Update("title", title).Error; err != nil {
			return err
		}
		item.Title = title
	}

	detailUpdates := map[string]interface{}{}
	if updates.Stem != "" {
		detailUpdates["stem"] = updates.Stem
	}
	if updates.Options != nil {
		detail := models.ExamQuestionDetail{}
		if err := detail.SetOptions(updates.Options); err != nil {
			return err
		}
		detailUpdates["options_json"] = detail.OptionsJSON
	}
	if updates.CorrectIndex != nil {
		detailUpdates["correct_index"] = *updates.CorrectIndex
	}
	if updates.Explanation != nil {
		detailUpdates["explanation"] = *updates.Explanation
	}
	if updates.Topic != nil {
		detailUpdates["topic"] = *updates.Topic
	}
	if updates.Difficulty != nil {
		detailUpdates["difficulty"] = *updates.Difficulty
	}
	if len(detailUpdates) == 0 {
		return nil
	}
	return tx.Model(&models.ExamQuestionDetail{}).
		Where("content_item_id = ?", item.ContentItemID).
		Updates(detailUpdates).Error
}
