package models

import "time"

// Content kinds subject to the review lifecycle.
const (
	ContentKindBlog         = "blog"
	ContentKindExamQuestion = "exam_question"
)

// Lifecycle states. Archive is a state, never a hard delete.
const (
	StateDraft     = "draft"
	StateInReview  = "in_review"
	StatePublished = "published"
	StateArchived  = "archived"
)

// Review substates. Tracked as an explicit column so the assigned/unassigned
// split never has to be inferred from a nullable reviewer_id.
const (
	SubstateNone       = "none"
	SubstateUnassigned = "unassigned"
	SubstateAssigned   = "assigned"
)

// ContentItem is a blog post or exam question moving through the review
// lifecycle. The kind-specific payload lives in a detail table.
type ContentItem struct {
	ContentItemID  int    `gorm:"primaryKey;column:content_item_id" json:"content_item_id"`
	Kind           string `gorm:"column:kind" json:"kind"`
	AuthorID       int    `gorm:"column:author_id" json:"author_id"`
	Title          string `gorm:"column:title" json:"title"`
	State          string `gorm:"column:state" json:"state"`
	ReviewSubstate string `gorm:"column:review_substate" json:"review_substate"`
	ReviewerID     *int   `gorm:"column:reviewer_id" json:"reviewer_id,omitempty"`
	SlugToken      string `gorm:"column:slug_token" json:"slug_token"`

	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	PublishedAt *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`
	DeleteAt    *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`

	// Relations
	Author     *User               `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Reviewer   *User               `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	BlogDetail *BlogPostDetail     `gorm:"foreignKey:ContentItemID" json:"blog_detail,omitempty"`
	ExamDetail *ExamQuestionDetail `gorm:"foreignKey:ContentItemID" json:"exam_detail,omitempty"`
}

// TableName specifies the table name for ContentItem.
func (ContentItem) TableName() string {
	return "content_items"
}

// IsValidState reports whether s is one of the four lifecycle states.
func IsValidState(s string) bool {
	switch s {
	case StateDraft, StateInReview, StatePublished, StateArchived:
		return true
	}
	return false
}
