package services

import (
	"fmt"
	"testing"
	"time"

	"emgurus-api/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int

// newTestDB opens a fresh in-memory database with the full schema and the
// three roles seeded.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBCounter++
	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", testDBCounter)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.ContentItem{},
		&models.BlogPostDetail{},
		&models.ExamQuestionDetail{},
		&models.ReviewAssignment{},
		&models.ReviewNote{},
		&models.ContentStatusHistory{},
		&models.ContentFlag{},
		&models.Notification{},
		&models.NotificationMessage{},
		&models.NotificationOutbox{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	roles := []models.Role{
		{RoleID: models.RoleUser, Role: "user"},
		{RoleID: models.RoleGuru, Role: "guru"},
		{RoleID: models.RoleAdmin, Role: "admin"},
	}
	if err := db.Create(&roles).Error; err != nil {
		t.Fatalf("failed to seed roles: %v", err)
	}

	return db
}

// createUser inserts a user holding the given roles and returns it with
// the role set loaded.
func createUser(t *testing.T, db *gorm.DB, email string, roleIDs ...int) *models.User {
	t.Helper()

	now := time.Now()
	user := models.User{
		FirstName:    "Test",
		LastName:     email,
		Email:        email,
		PasswordHash: "x",
		CreateAt:     &now,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	for _, roleID := range roleIDs {
		if err := db.Create(&models.UserRole{UserID: user.UserID, RoleID: roleID}).Error; err != nil {
			t.Fatalf("failed to attach role %d: %v", roleID, err)
		}
	}

	var loaded models.User
	if err := db.Preload("Roles").First(&loaded, user.UserID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return &loaded
}

// createDraftBlog inserts a complete draft blog post for the author.
func createDraftBlog(t *testing.T, db *gorm.DB, author *models.User, title string) *models.ContentItem {
	t.Helper()

	now := time.Now()
	item := models.ContentItem{
		Kind:           models.ContentKindBlog,
		AuthorID:       author.UserID,
		Title:          title,
		State:          models.StateDraft,
		ReviewSubstate: models.SubstateNone,
		SlugToken:      fmt.Sprintf("slug-%d", testDBCounter),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to create content item: %v", err)
	}
	detail := models.BlogPostDetail{
		ContentItemID: item.ContentItemID,
		BodyMarkdown:  "Initial assessment of chest pain in the ED.",
		CreateAt:      now,
		UpdateAt:      now,
	}
	if err := db.Create(&detail).Error; err != nil {
		t.Fatalf("failed to create blog detail: %v", err)
	}
	return &item
}

// createDraftQuestion inserts a complete draft exam question.
func createDraftQuestion(t *testing.T, db *gorm.DB, author *models.User, title string) *models.ContentItem {
	t.Helper()

	now := time.Now()
	item := models.ContentItem{
		Kind:           models.ContentKindExamQuestion,
		AuthorID:       author.UserID,
		Title:          title,
		State:          models.StateDraft,
		ReviewSubstate: models.SubstateNone,
		SlugToken:      fmt.Sprintf("qslug-%d-%s", testDBCounter, title),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to create content item: %v", err)
	}
	detail := models.ExamQuestionDetail{
		ContentItemID: item.ContentItemID,
		Stem:          "A 54-year-old presents with crushing chest pain. Next step?",
		CorrectIndex:  1,
		CreateAt:      now,
		UpdateAt:      now,
	}
	if err := detail.SetOptions([]string{"Discharge", "ECG within 10 minutes", "CT head"}); err != nil {
		t.Fatalf("failed to set options: %v", err)
	}
	if err := db.Create(&detail).Error; err != nil {
		t.Fatalf("failed to create exam detail: %v", err)
	}
	return &item
}

// reloadItem fetches the current row for assertions.
func reloadItem(t *testing.T, db *gorm.DB, itemID int) *models.ContentItem {
	t.Helper()

	var item models.ContentItem
	if err := db.Preload("BlogDetail").Preload("ExamDetail").First(&item, itemID).Error; err != nil {
		t.Fatalf("failed to reload item %d: %v", itemID, err)
	}
	return &item
}
