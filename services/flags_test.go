package services

import (
	"testing"

	"emgurus-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func publishBlog(t *testing.T, db *gorm.DB, author, admin *models.User, title string) *models.ContentItem {
	t.Helper()
	item := submitBlogForReview(t, db, author, title)
	if _, err := Transition(db, item.ContentItemID, ActionPublish, admin, TransitionOptions{}); err != nil {
		t.Fatalf("failed to publish item: %v", err)
	}
	return item
}

func TestOpenFlag(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	reader := createUser(t, db, "reader@example.com", models.RoleUser)
	item := publishBlog(t, db, author, admin, "Outdated dosing")

	flag, err := OpenFlag(db, item.ContentItemID, reader, "The adrenaline dose is outdated.")
	require.NoError(t, err)
	assert.Equal(t, models.FlagStatusOpen, flag.Status)
	assert.Equal(t, reader.UserID, flag.FlaggedBy)
	assert.NotEmpty(t, flag.Ticket)
	assert.True(t, flag.IsOpenStatus())

	// Flagging never touches the item's own lifecycle.
	current := reloadItem(t, db, item.ContentItemID)
	assert.Equal(t, models.StatePublished, current.State)

	var outbox models.NotificationOutbox
	require.NoError(t, db.Where("event_key = ?", EventFlagOpened).First(&outbox).Error)
	require.NotNil(t, outbox.RecipientRole)
	assert.Equal(t, "admin", *outbox.RecipientRole)
}

func TestOpenFlagRequiresReason(t *testing.T) {
	db := newTestDB(t)
	reader := createUser(t, db, "reader@example.com", models.RoleUser)

	_, err := OpenFlag(db, 1, reader, "   ")
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)
}

func TestFlagTriageCycle(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	guru := createUser(t, db, "guru@example.com", models.RoleUser, models.RoleGuru)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	reader := createUser(t, db, "reader@example.com", models.RoleUser)
	item := publishBlog(t, db, author, admin, "Contested claim")

	flag, err := OpenFlag(db, item.ContentItemID, reader, "Reference 3 does not support the claim.")
	require.NoError(t, err)

	// Admin assigns the flag to a guru for investigation.
	assignTo := guru.UserID
	updated, err := UpdateFlag(db, flag.FlagID, FlagActionAssign, admin, FlagUpdateOptions{AssignTo: &assignTo})
	require.NoError(t, err)
	assert.Equal(t, models.FlagStatusInReview, updated.Status)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, guru.UserID, *updated.AssignedTo)

	// The assigned guru resolves it.
	updated, err = UpdateFlag(db, flag.FlagID, FlagActionResolve, guru,
		FlagUpdateOptions{ResolutionNote: "Replaced the reference."})
	require.NoError(t, err)
	assert.Equal(t, models.FlagStatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
	require.NotNil(t, updated.ResolutionNote)

	// The flagger is told about the outcome.
	var outbox models.NotificationOutbox
	require.NoError(t, db.Where("event_key = ?", EventFlagResolved).First(&outbox).Error)
	require.NotNil(t, outbox.RecipientIDs)

	// Terminal flags can only be archived.
	_, err = UpdateFlag(db, flag.FlagID, FlagActionResolve, admin, FlagUpdateOptions{})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidTransition, appErr.Code)

	updated, err = UpdateFlag(db, flag.FlagID, FlagActionArchive, admin, FlagUpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.FlagStatusArchived, updated.Status)
}

func TestFlagAssignRequiresReviewerRole(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	plain := createUser(t, db, "plain@example.com", models.RoleUser)
	item := publishBlog(t, db, author, admin, "Needs triage")

	flag, err := OpenFlag(db, item.ContentItemID, author, "Broken image link.")
	require.NoError(t, err)

	assignTo := plain.UserID
	_, err = UpdateFlag(db, flag.FlagID, FlagActionAssign, admin, FlagUpdateOptions{AssignTo: &assignTo})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)
}

func TestFlagActionsForbiddenForBystanders(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	guru := createUser(t, db, "guru@example.com", models.RoleUser, models.RoleGuru)
	otherGuru := createUser(t, db, "other@example.com", models.RoleUser, models.RoleGuru)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	item := publishBlog(t, db, author, admin, "Guarded flag")

	flag, err := OpenFlag(db, item.ContentItemID, author, "Typo in the dosing table.")
	require.NoError(t, err)

	// An unassigned guru may not close someone else's flag.
	_, err = UpdateFlag(db, flag.FlagID, FlagActionDismiss, otherGuru, FlagUpdateOptions{})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)

	assignTo := guru.UserID
	_, err = UpdateFlag(db, flag.FlagID, FlagActionAssign, admin, FlagUpdateOptions{AssignTo: &assignTo})
	require.NoError(t, err)

	// Only admins archive; the assignee's powers end at resolve/dismiss.
	_, err = UpdateFlag(db, flag.FlagID, FlagActionArchive, guru, FlagUpdateOptions{})
	appErr, ok = AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)
}
