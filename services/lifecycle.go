package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"emgurus-api/models"

	"gorm.io/gorm"
)

// Action is a lifecycle action requested by a caller.
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionAssign         Action = "assign"
	ActionRequestChanges Action = "request_changes"
	ActionReject         Action = "reject"
	ActionPublish        Action = "publish"
)

// stateTarget describes where a successful action lands.
type stateTarget struct {
	State    string
	Substate string
}

// transitions is the full transition table. Publishing is only reachable
// from in_review, so nothing can skip the submission step.
var transitions = map[string]map[Action]stateTarget{
	models.StateDraft: {
		ActionSubmit: {models.StateInReview, models.SubstateUnassigned},
	},
	models.StateArchived: {
		// A rejected item may be re-edited and resubmitted as a new cycle.
		ActionSubmit: {models.StateInReview, models.SubstateUnassigned},
	},
	models.StateInReview: {
		ActionAssign:         {models.StateInReview, models.SubstateAssigned},
		ActionRequestChanges: {models.StateDraft, models.SubstateNone},
		ActionReject:         {models.StateArchived, models.SubstateNone},
		ActionPublish:        {models.StatePublished, models.SubstateNone},
	},
}

// NextState computes the target of applying action in the given state.
func NextState(state string, action Action) (stateTarget, error) {
	byAction, ok := transitions[state]
	if !ok {
		return stateTarget{}, InvalidTransition("no actions are allowed from state '%s'", state)
	}
	target, ok := byAction[action]
	if !ok {
		return stateTarget{}, InvalidTransition("action '%s' is not allowed from state '%s'", action, state)
	}
	return target, nil
}

// AllowedActions lists the actions available from a state.
func AllowedActions(state string) []Action {
	byAction, ok := transitions[state]
	if !ok {
		return nil
	}
	actions := make([]Action, 0, len(byAction))
	for action := range byAction {
		actions = append(actions, action)
	}
	return actions
}

// TransitionOptions carries per-request inputs for a transition.
type TransitionOptions struct {
	// Note is appended to the item's review note log when non-empty.
	// Required for request_changes.
	Note string

	// ApplyDetail, when set, runs inside the transition's transaction before
	// the state change (e.g. guru edits saved together with an approval).
	ApplyDetail func(tx *gorm.DB, item *models.ContentItem) error

	IPAddress string
	UserAgent string
}

// Transition applies a lifecycle action to a content item atomically:
// authorization, guard checks, the state update, review note, assignment
// resolution, status history, audit log and the notification outbox row all
// commit or roll back together.
func Transition(db *gorm.DB, itemID int, action Action, actor *models.User, opts TransitionOptions) (*models.ContentItem, error) {
	if action == ActionAssign {
		return nil, Validation("assign must go through the assignment manager")
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var item models.ContentItem
	if err := tx.Preload("BlogDetail").Preload("ExamDetail").
		Where("content_item_id = ? AND delete_at IS NULL", itemID).
		First(&item).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("content item %d not found", itemID)
		}
		return nil, err
	}

	if err := Authorize(actor, action, &item); err != nil {
		tx.Rollback()
		return nil, err
	}

	target, err := NextState(item.State, action)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	note := strings.TrimSpace(opts.Note)
	if action == ActionRequestChanges && note == "" {
		tx.Rollback()
		return nil, Validation("a note is required when requesting changes")
	}
	if action == ActionSubmit {
		if err := checkSubmittable(&item); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if opts.ApplyDetail != nil {
		if err := opts.ApplyDetail(tx, &item); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"state":           target.State,
		"review_substate": target.Substate,
		"updated_at":      now,
	}
	switch action {
	case ActionSubmit:
		// Resubmission re-enters the unassigned queue; a stale reviewer_id
		// must never auto-reassign the previous reviewer.
		updates["reviewer_id"] = nil
		updates["submitted_at"] = now
	case ActionReject:
		updates["reviewed_at"] = now
	case ActionPublish:
		updates["reviewed_at"] = now
		updates["published_at"] = now
		updates["reviewer_id"] = actor.UserID
	}

	// Guarded against a concurrent transition on the same row.
	res := tx.Model(&models.ContentItem{}).
		Where("content_item_id = ? AND state = ?", item.ContentItemID, item.State).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		tx.Rollback()
		return nil, InvalidTransition("content item %d changed state concurrently", item.ContentItemID)
	}

	if note != "" {
		reviewNote := models.ReviewNote{
			ContentItemID: item.ContentItemID,
			AuthorID:      actor.UserID,
			Note:          note,
			CreatedAt:     now,
		}
		if err := tx.Create(&reviewNote).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	switch action {
	case ActionRequestChanges, ActionReject:
		if err := resolvePendingAssignment(tx, item.ContentItemID, models.AssignmentStatusRejected, now); err != nil {
			tx.Rollback()
			return nil, err
		}
	case ActionPublish:
		if err := resolvePendingAssignment(tx, item.ContentItemID, models.AssignmentStatusCompleted, now); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := recordStatusHistory(tx, &item, target, actor.UserID, note, string(action), now); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := writeAuditLog(tx, actor.UserID, string(action), &item, target, note, opts); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := enqueueTransitionEvent(tx, action, &item, actor, note); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	var updated models.ContentItem
	if err := db.Preload("Author").Preload("Reviewer").
		Preload("BlogDetail").Preload("ExamDetail").
		First(&updated, item.ContentItemID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// checkSubmittable enforces the minimum-completeness guard for submit.
func checkSubmittable(item *models.ContentItem) error {
	if strings.TrimSpace(item.Title) == "" {
		return Validation("title is required before submitting")
	}
	switch item.Kind {
	case models.ContentKindBlog:
		if item.BlogDetail == nil || strings.TrimSpace(item.BlogDetail.BodyMarkdown) == "" {
			return Validation("blog body is required before submitting")
		}
	case models.ContentKindExamQuestion:
		detail := item.ExamDetail
		if detail == nil || strings.TrimSpace(detail.Stem) == "" {
			return Validation("question stem is required before submitting")
		}
		options := detail.Options()
		if len(options) < 2 {
			return Validation("at least two answer options are required before submitting")
		}
		if detail.CorrectIndex < 0 || detail.CorrectIndex >= len(options) {
			return Validation("correct answer index is out of range")
		}
	default:
		return Validation("unknown content kind '%s'", item.Kind)
	}
	return nil
}

func recordStatusHistory(tx *gorm.DB, item *models.ContentItem, target stateTarget, changedBy int, reason, action string, now time.Time) error {
	oldState := item.State
	oldSubstate := item.ReviewSubstate
	history := models.ContentStatusHistory{
		ContentItemID: item.ContentItemID,
		OldState:      &oldState,
		NewState:      target.State,
		OldSubstate:   &oldSubstate,
		NewSubstate:   target.Substate,
		ChangedBy:     changedBy,
		CreatedAt:     now,
	}
	if reason != "" {
		history.Reason = &reason
	}
	notes := fmt.Sprintf("action:%s", action)
	history.Notes = &notes
	return tx.Create(&history).Error
}

func writeAuditLog(tx *gorm.DB, userID int, action string, item *models.ContentItem, target stateTarget, note string, opts TransitionOptions) error {
	values := map[string]interface{}{
		"state":           target.State,
		"review_substate": target.Substate,
	}
	if note != "" {
		values["note"] = note
	}
	serialized, _ := json.Marshal(values)

	entityID := item.ContentItemID
	newValues := string(serialized)
	description := fmt.Sprintf("%s %s", action, item.Kind)
	audit := models.AuditLog{
		UserID:      userID,
		Action:      action,
		EntityType:  "content_item",
		EntityID:    &entityID,
		NewValues:   &newValues,
		Description: &description,
		IPAddress:   opts.IPAddress,
		CreatedAt:   time.Now(),
	}
	if item.SlugToken != "" {
		token := item.SlugToken
		audit.EntityNumber = &token
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		audit.UserAgent = &ua
	}
	return tx.Create(&audit).Error
}

func enqueueTransitionEvent(tx *gorm.DB, action Action, item *models.ContentItem, actor *models.User, note string) error {
	payload := map[string]string{
		"title":      item.Title,
		"kind":       item.Kind,
		"actor_name": actor.DisplayName(),
	}
	if note != "" {
		payload["note"] = note
	}

	itemID := item.ContentItemID
	switch action {
	case ActionSubmit:
		return EnqueueNotification(tx, OutboxEvent{
			Event:   EventContentSubmitted,
			ItemID:  &itemID,
			Role:    "admin",
			Payload: payload,
		})
	case ActionRequestChanges:
		return EnqueueNotification(tx, OutboxEvent{
			Event:   EventChangesRequested,
			ItemID:  &itemID,
			UserIDs: []int{item.AuthorID},
			Payload: payload,
		})
	case ActionReject:
		return EnqueueNotification(tx, OutboxEvent{
			Event:   EventContentRejected,
			ItemID:  &itemID,
			UserIDs: []int{item.AuthorID},
			Payload: payload,
		})
	case ActionPublish:
		return EnqueueNotification(tx, OutboxEvent{
			Event:   EventContentPublished,
			ItemID:  &itemID,
			UserIDs: []int{item.AuthorID},
			Payload: payload,
		})
	}
	return nil
}
