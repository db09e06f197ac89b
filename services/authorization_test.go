package services

import (
	"testing"

	"emgurus-api/models"
)

func userWithRoles(id int, roleIDs ...int) *models.User {
	user := &models.User{UserID: id}
	for _, roleID := range roleIDs {
		user.Roles = append(user.Roles, models.Role{RoleID: roleID})
	}
	return user
}

func TestAuthorizePublish(t *testing.T) {
	reviewerID := 7
	item := &models.ContentItem{AuthorID: 2, State: models.StateInReview, ReviewerID: &reviewerID}

	cases := []struct {
		name  string
		actor *models.User
		allow bool
	}{
		{"admin", userWithRoles(9, models.RoleAdmin), true},
		{"assigned guru", userWithRoles(7, models.RoleUser, models.RoleGuru), true},
		{"assigned non-guru", userWithRoles(7, models.RoleUser), false},
		{"unassigned guru", userWithRoles(8, models.RoleUser, models.RoleGuru), false},
		{"author", userWithRoles(2, models.RoleUser), false},
		{"plain user", userWithRoles(3, models.RoleUser), false},
	}
	for _, tc := range cases {
		err := Authorize(tc.actor, ActionPublish, item)
		if tc.allow && err != nil {
			t.Errorf("%s: expected publish to be allowed, got %v", tc.name, err)
		}
		if !tc.allow && err == nil {
			t.Errorf("%s: expected publish to be forbidden", tc.name)
		}
	}
}

func TestAuthorizeRequestChanges(t *testing.T) {
	reviewerID := 7
	item := &models.ContentItem{AuthorID: 2, State: models.StateInReview, ReviewerID: &reviewerID}

	if err := Authorize(userWithRoles(7, models.RoleGuru), ActionRequestChanges, item); err != nil {
		t.Errorf("assigned reviewer should request changes: %v", err)
	}
	if err := Authorize(userWithRoles(9, models.RoleAdmin), ActionRequestChanges, item); err != nil {
		t.Errorf("admin should request changes: %v", err)
	}
	if err := Authorize(userWithRoles(8, models.RoleGuru), ActionRequestChanges, item); err == nil {
		t.Error("unassigned guru should not request changes")
	}
}

func TestAuthorizeNilActor(t *testing.T) {
	item := &models.ContentItem{AuthorID: 2, State: models.StateDraft}
	if err := Authorize(nil, ActionSubmit, item); err == nil {
		t.Error("nil actor must be rejected")
	}
}

func TestAuthorizeEdit(t *testing.T) {
	item := &models.ContentItem{AuthorID: 2, State: models.StateDraft}

	if err := AuthorizeEdit(userWithRoles(2, models.RoleUser), item); err != nil {
		t.Errorf("author should edit own draft: %v", err)
	}
	if err := AuthorizeEdit(userWithRoles(3, models.RoleUser), item); err == nil {
		t.Error("non-author should not edit")
	}

	item.State = models.StateInReview
	if err := AuthorizeEdit(userWithRoles(2, models.RoleUser), item); err == nil {
		t.Error("items under review are frozen for the author")
	}
	if err := AuthorizeEdit(userWithRoles(9, models.RoleAdmin), item); err != nil {
		t.Errorf("admin override should apply: %v", err)
	}

	item.State = models.StateArchived
	if err := AuthorizeEdit(userWithRoles(2, models.RoleUser), item); err != nil {
		t.Errorf("author should rework an archived item: %v", err)
	}
}
