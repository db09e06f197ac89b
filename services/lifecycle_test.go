package services

import (
	"fmt"
	"testing"

	"emgurus-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNextStateTable(t *testing.T) {
	cases := []struct {
		state        string
		action       Action
		wantState    string
		wantSubstate string
		wantErr      bool
	}{
		{models.StateDraft, ActionSubmit, models.StateInReview, models.SubstateUnassigned, false},
		{models.StateDraft, ActionPublish, "", "", true},
		{models.StateDraft, ActionReject, "", "", true},
		{models.StateArchived, ActionSubmit, models.StateInReview, models.SubstateUnassigned, false},
		{models.StateInReview, ActionAssign, models.StateInReview, models.SubstateAssigned, false},
		{models.StateInReview, ActionRequestChanges, models.StateDraft, models.SubstateNone, false},
		{models.StateInReview, ActionReject, models.StateArchived, models.SubstateNone, false},
		{models.StateInReview, ActionPublish, models.StatePublished, models.SubstateNone, false},
		{models.StatePublished, ActionSubmit, "", "", true},
		{models.StatePublished, ActionPublish, "", "", true},
	}

	for _, tc := range cases {
		target, err := NextState(tc.state, tc.action)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NextState(%s, %s): expected error, got %+v", tc.state, tc.action, target)
			}
			continue
		}
		if err != nil {
			t.Errorf("NextState(%s, %s): unexpected error %v", tc.state, tc.action, err)
			continue
		}
		if target.State != tc.wantState || target.Substate != tc.wantSubstate {
			t.Errorf("NextState(%s, %s) = %s/%s, want %s/%s",
				tc.state, tc.action, target.State, target.Substate, tc.wantState, tc.wantSubstate)
		}
	}
}

func TestTransitionTargetsAreValidStates(t *testing.T) {
	for state, byAction := range transitions {
		if !models.IsValidState(state) {
			t.Errorf("transition table contains unknown source state %q", state)
		}
		for action, target := range byAction {
			if !models.IsValidState(target.State) {
				t.Errorf("%s on %s lands in unknown state %q", action, state, target.State)
			}
		}
	}
}

func TestAllowedActions(t *testing.T) {
	if actions := AllowedActions(models.StatePublished); len(actions) != 0 {
		t.Errorf("published items should allow no actions, got %v", actions)
	}
	if actions := AllowedActions(models.StateInReview); len(actions) != 4 {
		t.Errorf("in_review should allow 4 actions, got %v", actions)
	}
}

func TestCheckSubmittable(t *testing.T) {
	blog := &models.ContentItem{
		Kind:       models.ContentKindBlog,
		Title:      "Sepsis bundles",
		BlogDetail: &models.BlogPostDetail{BodyMarkdown: "Early antibiotics."},
	}
	if err := checkSubmittable(blog); err != nil {
		t.Fatalf("complete blog should be submittable: %v", err)
	}

	blog.BlogDetail.BodyMarkdown = "  "
	if err := checkSubmittable(blog); err == nil {
		t.Fatal("blog without a body should not be submittable")
	}

	question := &models.ContentItem{
		Kind:       models.ContentKindExamQuestion,
		Title:      "ECG interpretation",
		ExamDetail: &models.ExamQuestionDetail{Stem: "Which rhythm?", CorrectIndex: 0},
	}
	if err := question.ExamDetail.SetOptions([]string{"VT"}); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}
	if err := checkSubmittable(question); err == nil {
		t.Fatal("question with a single option should not be submittable")
	}

	if err := question.ExamDetail.SetOptions([]string{"VT", "SVT with aberrancy"}); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}
	question.ExamDetail.CorrectIndex = 5
	if err := checkSubmittable(question); err == nil {
		t.Fatal("out-of-range correct index should not be submittable")
	}

	question.ExamDetail.CorrectIndex = 1
	if err := checkSubmittable(question); err != nil {
		t.Fatalf("complete question should be submittable: %v", err)
	}
}

func TestSubmitTransition(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	item := createDraftBlog(t, db, author, "Airway basics")

	updated, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StateInReview, updated.State)
	assert.Equal(t, models.SubstateUnassigned, updated.ReviewSubstate)
	assert.Nil(t, updated.ReviewerID)
	require.NotNil(t, updated.SubmittedAt)

	var historyCount int64
	require.NoError(t, db.Model(&models.ContentStatusHistory{}).
		Where("content_item_id = ?", item.ContentItemID).Count(&historyCount).Error)
	assert.Equal(t, int64(1), historyCount)

	var outbox models.NotificationOutbox
	require.NoError(t, db.Where("event_key = ?", EventContentSubmitted).First(&outbox).Error)
	require.NotNil(t, outbox.RecipientRole)
	assert.Equal(t, "admin", *outbox.RecipientRole)
	assert.Equal(t, models.OutboxStatusPending, outbox.Status)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).
		Where("action = ? AND entity_id = ?", "submit", item.ContentItemID).Count(&auditCount).Error)
	assert.Equal(t, int64(1), auditCount)
}

func TestSubmitOnlyByAuthor(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	other := createUser(t, db, "other@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	item := createDraftBlog(t, db, author, "Trauma primary survey")

	for _, actor := range []*models.User{other, admin} {
		_, err := Transition(db, item.ContentItemID, ActionSubmit, actor, TransitionOptions{})
		appErr, ok := AsAppError(err)
		require.True(t, ok, "expected AppError for %s", actor.Email)
		assert.Equal(t, CodeForbidden, appErr.Code)
	}

	current := reloadItem(t, db, item.ContentItemID)
	assert.Equal(t, models.StateDraft, current.State)
}

func TestSubmitIncompleteQuestionRejected(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	item := createDraftQuestion(t, db, author, "Incomplete question")

	require.NoError(t, db.Model(&models.ExamQuestionDetail{}).
		Where("content_item_id = ?", item.ContentItemID).
		Update("stem", "").Error)

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)
}

func TestPlainUserCanNeverPublish(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	user := createUser(t, db, "user@example.com", models.RoleUser)
	item := createDraftBlog(t, db, author, "Toxicology pearls")

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)

	_, err = Transition(db, item.ContentItemID, ActionPublish, user, TransitionOptions{})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)

	// The author holding only the user role cannot self-publish either.
	_, err = Transition(db, item.ContentItemID, ActionPublish, author, TransitionOptions{})
	appErr, ok = AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, appErr.Code)
}

func TestAdminPublishDirectly(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleUser, models.RoleAdmin)
	item := createDraftBlog(t, db, author, "Ultrasound in shock")

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)

	updated, err := Transition(db, item.ContentItemID, ActionPublish, admin, TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, updated.State)
	assert.Equal(t, models.SubstateNone, updated.ReviewSubstate)
	require.NotNil(t, updated.PublishedAt)
	require.NotNil(t, updated.ReviewerID)
	assert.Equal(t, admin.UserID, *updated.ReviewerID)

	var outbox models.NotificationOutbox
	require.NoError(t, db.Where("event_key = ?", EventContentPublished).First(&outbox).Error)
	require.NotNil(t, outbox.RecipientIDs)
	assert.JSONEq(t, fmt.Sprintf("[%d]", author.UserID), *outbox.RecipientIDs)
}

func TestRequestChangesRequiresNote(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	item := createDraftBlog(t, db, author, "Pediatric fever")

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)

	_, err = Transition(db, item.ContentItemID, ActionRequestChanges, admin, TransitionOptions{Note: "   "})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)

	current := reloadItem(t, db, item.ContentItemID)
	assert.Equal(t, models.StateInReview, current.State)
}

// Full cycle: submit, assign, changes requested, edit, resubmit, publish.
func TestReviewRoundTrip(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	guru := createUser(t, db, "guru@example.com", models.RoleUser, models.RoleGuru)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	item := createDraftBlog(t, db, author, "Stroke thrombolysis windows")

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)

	assignment, err := AssignReviewer(db, item.ContentItemID, guru.UserID, admin, AssignOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusPending, assignment.Status)

	current := reloadItem(t, db, item.ContentItemID)
	assert.Equal(t, models.SubstateAssigned, current.ReviewSubstate)
	require.NotNil(t, current.ReviewerID)
	assert.Equal(t, guru.UserID, *current.ReviewerID)

	// Reviewer sends it back with feedback.
	updated, err := Transition(db, item.ContentItemID, ActionRequestChanges, guru,
		TransitionOptions{Note: "Cite the 4.5 hour evidence."})
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, updated.State)
	assert.Equal(t, models.SubstateNone, updated.ReviewSubstate)

	var resolved models.ReviewAssignment
	require.NoError(t, db.First(&resolved, assignment.AssignmentID).Error)
	assert.Equal(t, models.AssignmentStatusRejected, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	var notes []models.ReviewNote
	require.NoError(t, db.Where("content_item_id = ?", item.ContentItemID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, guru.UserID, notes[0].AuthorID)
	assert.Equal(t, "Cite the 4.5 hour evidence.", notes[0].Note)

	// Author edits and resubmits; the previous reviewer must not come back
	// automatically.
	require.NoError(t, db.Model(&models.BlogPostDetail{}).
		Where("content_item_id = ?", item.ContentItemID).
		Update("body_markdown", "Updated with the ECASS III data.").Error)

	updated, err = Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StateInReview, updated.State)
	assert.Equal(t, models.SubstateUnassigned, updated.ReviewSubstate)
	assert.Nil(t, updated.ReviewerID)

	// Second cycle: reassign and the guru publishes.
	second, err := AssignReviewer(db, item.ContentItemID, guru.UserID, admin, AssignOptions{})
	require.NoError(t, err)

	updated, err = Transition(db, item.ContentItemID, ActionPublish, guru, TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, updated.State)

	resolved = models.ReviewAssignment{}
	require.NoError(t, db.First(&resolved, second.AssignmentID).Error)
	assert.Equal(t, models.AssignmentStatusCompleted, resolved.Status)

	// submit, assign, request_changes, submit, assign, publish
	var historyCount int64
	require.NoError(t, db.Model(&models.ContentStatusHistory{}).
		Where("content_item_id = ?", item.ContentItemID).Count(&historyCount).Error)
	assert.Equal(t, int64(6), historyCount)
}

func TestRejectArchivesAndAllowsResubmit(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	item := createDraftQuestion(t, db, author, "Burn fluid resuscitation")

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)

	updated, err := Transition(db, item.ContentItemID, ActionReject, admin,
		TransitionOptions{Note: "Duplicate of an existing question."})
	require.NoError(t, err)
	assert.Equal(t, models.StateArchived, updated.State)
	require.NotNil(t, updated.ReviewedAt)

	// Archived is a state, not a tombstone. The row is still there and the
	// author may rework and resubmit.
	var stored models.ContentItem
	require.NoError(t, db.First(&stored, item.ContentItemID).Error)
	assert.Nil(t, stored.DeleteAt)

	updated, err = Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StateInReview, updated.State)
}

func TestPublishGuardAgainstConcurrentChange(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "author@example.com", models.RoleUser)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
	item := createDraftBlog(t, db, author, "Procedural sedation")

	_, err := Transition(db, item.ContentItemID, ActionSubmit, author, TransitionOptions{})
	require.NoError(t, err)

	// Simulate the row moving under us between load and update.
	opts := TransitionOptions{
		ApplyDetail: func(tx *gorm.DB, current *models.ContentItem) error {
			return tx.Model(&models.ContentItem{}).
				Where("content_item_id = ?", current.ContentItemID).
				Update("state", models.StateArchived).Error
		},
	}
	_, err = Transition(db, item.ContentItemID, ActionPublish, admin, opts)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidTransition, appErr.Code)
}

func TestTransitionRejectsAssignAction(t *testing.T) {
	db := newTestDB(t)
	admin := createUser(t, db, "admin@example.com", models.RoleAdmin)

	_, err := Transition(db, 1, ActionAssign, admin, TransitionOptions{})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, appErr.Code)
}
