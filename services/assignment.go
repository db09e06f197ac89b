package services

import (
	"errors"
	"strings"
	"time"

	"emgurus-api/models"

	"gorm.io/gorm"
)

// AssignOptions carries per-request inputs for assigning a reviewer.
type AssignOptions struct {
	Note string

	// Supersede resolves an existing pending assignment as superseded
	// instead of failing. Default policy is explicit resolution first.
	Supersede bool

	IPAddress string
	UserAgent string
}

// AssignReviewer creates a pending review assignment for an in_review item.
// The at-most-one-pending invariant is enforced with guarded updates, not
// application locks: concurrent assigns serialize at the database and all
// but one fail.
func AssignReviewer(db *gorm.DB, itemID, reviewerID int, actor *models.User, opts AssignOptions) (*models.ReviewAssignment, error) {
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var item models.ContentItem
	if err := tx.Where("content_item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("content item %d not found", itemID)
		}
		return nil, err
	}

	if err := Authorize(actor, ActionAssign, &item); err != nil {
		tx.Rollback()
		return nil, err
	}
	if item.State != models.StateInReview {
		tx.Rollback()
		return nil, InvalidTransition("only items in review can be assigned, item is '%s'", item.State)
	}

	var reviewer models.User
	if err := tx.Preload("Roles").
		Where("user_id = ? AND delete_at IS NULL", reviewerID).
		First(&reviewer).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("reviewer %d not found", reviewerID)
		}
		return nil, err
	}
	if !reviewer.HasRole(models.RoleGuru) {
		tx.Rollback()
		return nil, Validation("user %d does not have the guru role", reviewerID)
	}

	now := time.Now()

	var prior models.ReviewAssignment
	err := tx.Where("content_item_id = ? AND status = ?", itemID, models.AssignmentStatusPending).
		First(&prior).Error
	switch {
	case err == nil:
		if !opts.Supersede {
			tx.Rollback()
			return nil, AlreadyAssigned("item %d already has a pending assignment for reviewer %d", itemID, prior.ReviewerID)
		}
		res := tx.Model(&models.ReviewAssignment{}).
			Where("assignment_id = ? AND status = ?", prior.AssignmentID, models.AssignmentStatusPending).
			Updates(map[string]interface{}{
				"status":      models.AssignmentStatusSuperseded,
				"resolved_at": now,
			})
		if res.Error != nil {
			tx.Rollback()
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			tx.Rollback()
			return nil, Conflict("pending assignment for item %d was resolved concurrently", itemID)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// no pending assignment, nothing to supersede
	default:
		tx.Rollback()
		return nil, err
	}

	// Claim the review seat. Without a prior assignment the substate guard
	// makes exactly one of two racing assigns succeed.
	claim := tx.Model(&models.ContentItem{}).
		Where("content_item_id = ? AND state = ?", itemID, models.StateInReview)
	if prior.AssignmentID == 0 {
		claim = claim.Where("review_substate = ?", models.SubstateUnassigned)
	}
	res := claim.Updates(map[string]interface{}{
		"reviewer_id":     reviewerID,
		"review_substate": models.SubstateAssigned,
		"updated_at":      now,
	})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		tx.Rollback()
		return nil, AlreadyAssigned("item %d was assigned concurrently", itemID)
	}

	assignment := models.ReviewAssignment{
		ContentItemID: itemID,
		ReviewerID:    reviewerID,
		AssignedBy:    actor.UserID,
		Status:        models.AssignmentStatusPending,
		AssignedAt:    now,
	}
	if note := strings.TrimSpace(opts.Note); note != "" {
		assignment.Note = &note
	}
	if err := tx.Create(&assignment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	target := stateTarget{State: models.StateInReview, Substate: models.SubstateAssigned}
	if err := recordStatusHistory(tx, &item, target, actor.UserID, opts.Note, "assign", now); err != nil {
		tx.Rollback()
		return nil, err
	}
	transitionOpts := TransitionOptions{IPAddress: opts.IPAddress, UserAgent: opts.UserAgent}
	if err := writeAuditLog(tx, actor.UserID, "assign", &item, target, opts.Note, transitionOpts); err != nil {
		tx.Rollback()
		return nil, err
	}

	payload := map[string]string{
		"title":      item.Title,
		"kind":       item.Kind,
		"actor_name": actor.DisplayName(),
	}
	if err := EnqueueNotification(tx, OutboxEvent{
		Event:   EventContentAssigned,
		ItemID:  &item.ContentItemID,
		UserIDs: []int{reviewerID},
		Payload: payload,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// CompleteAssignment resolves a pending assignment with the given outcome
// (completed or rejected). Repeating the call with the same outcome is a
// no-op; a different outcome on a resolved assignment is a conflict.
func CompleteAssignment(db *gorm.DB, assignmentID int, outcome string, actor *models.User) error {
	if outcome != models.AssignmentStatusCompleted && outcome != models.AssignmentStatusRejected {
		return Validation("outcome must be '%s' or '%s'", models.AssignmentStatusCompleted, models.AssignmentStatusRejected)
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var assignment models.ReviewAssignment
	if err := tx.Where("assignment_id = ?", assignmentID).First(&assignment).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("assignment %d not found", assignmentID)
		}
		return err
	}

	if actor != nil && !actor.HasRole(models.RoleAdmin) && actor.UserID != assignment.ReviewerID {
		tx.Rollback()
		return Forbidden("only the assigned reviewer or an admin may resolve this assignment")
	}

	now := time.Now()
	res := tx.Model(&models.ReviewAssignment{}).
		Where("assignment_id = ? AND status = ?", assignmentID, models.AssignmentStatusPending).
		Updates(map[string]interface{}{
			"status":      outcome,
			"resolved_at": now,
		})
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		if assignment.Status == outcome {
			return nil // idempotent repeat
		}
		return Conflict("assignment %d is already resolved as '%s'", assignmentID, assignment.Status)
	}

	// The review seat opens up again for this item.
	if err := tx.Model(&models.ContentItem{}).
		Where("content_item_id = ? AND state = ? AND reviewer_id = ?",
			assignment.ContentItemID, models.StateInReview, assignment.ReviewerID).
		Updates(map[string]interface{}{
			"reviewer_id":     nil,
			"review_substate": models.SubstateUnassigned,
			"updated_at":      now,
		}).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetPendingAssignment returns the active assignment for an item, if any.
func GetPendingAssignment(db *gorm.DB, itemID int) (*models.ReviewAssignment, error) {
	var assignment models.ReviewAssignment
	err := db.Where("content_item_id = ? AND status = ?", itemID, models.AssignmentStatusPending).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// CountPendingAssignments reports how many pending assignments exist for an
// item. Anything above one is an invariant violation.
func CountPendingAssignments(db *gorm.DB, itemID int) (int64, error) {
	var count int64
	err := db.Model(&models.ReviewAssignment{}).
		Where("content_item_id = ? AND status = ?", itemID, models.AssignmentStatusPending).
		Count(&count).Error
	return count, err
}

// resolvePendingAssignment closes any pending assignment for the item as
// part of a lifecycle transition. Missing assignments are not an error.
func resolvePendingAssignment(tx *gorm.DB, itemID int, outcome string, now time.Time) error {
	return tx.Model(&models.ReviewAssignment{}).
		Where("content_item_id = ? AND status = ?", itemID, models.AssignmentStatusPending).
		Updates(map[string]interface{}{
			"status":      outcome,
			"resolved_at": now,
		}).Error
}
