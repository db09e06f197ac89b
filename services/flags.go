package services

import (
	"errors"
	"strings"
	"time"

	"emgurus-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Flag actions. Flags run their own lifecycle, independent of the item:
// open -> in_review -> {resolved | dismissed}, terminal states may be
// archived. A flagged item stays published while investigated.
const (
	FlagActionAssign  = "assign"
	FlagActionResolve = "resolve"
	FlagActionDismiss = "dismiss"
	FlagActionArchive = "archive"
)

var flagTransitions = map[string]map[string]string{
	models.FlagStatusOpen: {
		FlagActionAssign:  models.FlagStatusInReview,
		FlagActionResolve: models.FlagStatusResolved,
		FlagActionDismiss: models.FlagStatusDismissed,
	},
	models.FlagStatusInReview: {
		FlagActionAssign:  models.FlagStatusInReview, // reassignment
		FlagActionResolve: models.FlagStatusResolved,
		FlagActionDismiss: models.FlagStatusDismissed,
	},
	models.FlagStatusResolved: {
		FlagActionArchive: models.FlagStatusArchived,
	},
	models.FlagStatusDismissed: {
		FlagActionArchive: models.FlagStatusArchived,
	},
}

// OpenFlag files a quality report against a content item. Any authenticated
// user may flag; the item's own lifecycle state is untouched.
func OpenFlag(db *gorm.DB, itemID int, actor *models.User, reason string) (*models.ContentFlag, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, Validation("a reason is required to flag content")
	}

	var item models.ContentItem
	if err := db.Where("content_item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("content item %d not found", itemID)
		}
		return nil, err
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	now := time.Now()
	flag := models.ContentFlag{
		ContentItemID: itemID,
		Ticket:        uuid.NewString(),
		Status:        models.FlagStatusOpen,
		FlaggedBy:     actor.UserID,
		Reason:        reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Create(&flag).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	payload := map[string]string{
		"title":      item.Title,
		"kind":       item.Kind,
		"note":       reason,
		"actor_name": actor.DisplayName(),
	}
	if err := EnqueueNotification(tx, OutboxEvent{
		Event:   EventFlagOpened,
		ItemID:  &item.ContentItemID,
		Role:    "admin",
		Payload: payload,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &flag, nil
}

// FlagUpdateOptions carries triage inputs.
type FlagUpdateOptions struct {
	AssignTo       *int
	ResolutionNote string
}

// UpdateFlag applies a triage action to a flag. Admins may perform any
// action; the assigned guru may resolve or dismiss their own flags.
func UpdateFlag(db *gorm.DB, flagID int, action string, actor *models.User, opts FlagUpdateOptions) (*models.ContentFlag, error) {
	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var flag models.ContentFlag
	if err := tx.Preload("ContentItem").Where("flag_id = ?", flagID).First(&flag).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("flag %d not found", flagID)
		}
		return nil, err
	}

	if err := authorizeFlagAction(actor, action, &flag); err != nil {
		tx.Rollback()
		return nil, err
	}

	byAction, ok := flagTransitions[flag.Status]
	if !ok {
		tx.Rollback()
		return nil, InvalidTransition("no actions are allowed on a flag in status '%s'", flag.Status)
	}
	nextStatus, ok := byAction[action]
	if !ok {
		tx.Rollback()
		return nil, InvalidTransition("action '%s' is not allowed on a flag in status '%s'", action, flag.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     nextStatus,
		"updated_at": now,
	}
	switch action {
	case FlagActionAssign:
		if opts.AssignTo == nil {
			tx.Rollback()
			return nil, Validation("assign_to is required")
		}
		var assignee models.User
		if err := tx.Preload("Roles").
			Where("user_id = ? AND delete_at IS NULL", *opts.AssignTo).
			First(&assignee).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NotFound("user %d not found", *opts.AssignTo)
			}
			return nil, err
		}
		if !assignee.HasRole(models.RoleGuru) && !assignee.HasRole(models.RoleAdmin) {
			tx.Rollback()
			return nil, Validation("flags can only be assigned to gurus or admins")
		}
		updates["assigned_to"] = *opts.AssignTo
	case FlagActionResolve, FlagActionDismiss:
		updates["resolved_at"] = now
		if note := strings.TrimSpace(opts.ResolutionNote); note != "" {
			updates["resolution_note"] = note
		}
	}

	res := tx.Model(&models.ContentFlag{}).
		Where("flag_id = ? AND status = ?", flag.FlagID, flag.Status).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		tx.Rollback()
		return nil, Conflict("flag %d changed status concurrently", flag.FlagID)
	}

	if action == FlagActionResolve || action == FlagActionDismiss {
		title := ""
		if flag.ContentItem != nil {
			title = flag.ContentItem.Title
		}
		payload := map[string]string{
			"title":      title,
			"note":       strings.TrimSpace(opts.ResolutionNote),
			"actor_name": actor.DisplayName(),
		}
		if err := EnqueueNotification(tx, OutboxEvent{
			Event:   EventFlagResolved,
			ItemID:  &flag.ContentItemID,
			UserIDs: []int{flag.FlaggedBy},
			Payload: payload,
		}); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	var updated models.ContentFlag
	if err := db.Preload("ContentItem").Preload("Assignee").First(&updated, flag.FlagID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

func authorizeFlagAction(actor *models.User, action string, flag *models.ContentFlag) error {
	if actor == nil {
		return Forbidden("actor is required")
	}
	if actor.HasRole(models.RoleAdmin) {
		return nil
	}
	if (action == FlagActionResolve || action == FlagActionDismiss) &&
		flag.AssignedTo != nil && *flag.AssignedTo == actor.UserID {
		return nil
	}
	return Forbidden("only admins or the assigned reviewer may %s a flag", action)
}
