package services

import (
	"emgurus-api/models"
)

// Publish policy: an admin may always publish; the currently assigned
// reviewer may publish only if they hold the guru role. Plain users never
// publish, whatever the item state.

// Authorize decides whether the actor may perform the action on the item.
// It is the single capability check used by every transition; controllers
// never re-implement role logic.
func Authorize(actor *models.User, action Action, item *models.ContentItem) error {
	if actor == nil {
		return Forbidden("actor is required")
	}

	switch action {
	case ActionSubmit:
		if actor.UserID != item.AuthorID {
			return Forbidden("only the author may submit this item")
		}
		return nil

	case ActionAssign:
		if !actor.HasRole(models.RoleAdmin) {
			return Forbidden("only admins may assign reviewers")
		}
		return nil

	case ActionRequestChanges, ActionReject:
		if actor.HasRole(models.RoleAdmin) || isAssignedReviewer(actor, item) {
			return nil
		}
		return Forbidden("only the assigned reviewer or an admin may %s", action)

	case ActionPublish:
		if actor.HasRole(models.RoleAdmin) {
			return nil
		}
		if isAssignedReviewer(actor, item) && actor.HasRole(models.RoleGuru) {
			return nil
		}
		return Forbidden("publishing requires the admin role or the assigned guru reviewer")
	}

	return Forbidden("unknown action '%s'", action)
}

// AuthorizeEdit checks draft editing: authors may edit their own items while
// in draft or archived (changes requested / rejected) state.
func AuthorizeEdit(actor *models.User, item *models.ContentItem) error {
	if actor == nil {
		return Forbidden("actor is required")
	}
	if actor.HasRole(models.RoleAdmin) {
		return nil
	}
	if actor.UserID != item.AuthorID {
		return Forbidden("only the author may edit this item")
	}
	if item.State != models.StateDraft && item.State != models.StateArchived {
		return InvalidTransition("items can only be edited in draft state")
	}
	return nil
}

func isAssignedReviewer(actor *models.User, item *models.ContentItem) bool {
	return item.ReviewerID != nil && *item.ReviewerID == actor.UserID
}
