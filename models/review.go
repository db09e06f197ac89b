package models

import "time"

// Review assignment statuses. At most one pending assignment may exist per
// content item at any time.
const (
	AssignmentStatusPending    = "pending"
	AssignmentStatusCompleted  = "completed"
	AssignmentStatusRejected   = "rejected"
	AssignmentStatusSuperseded = "superseded"
)

// ReviewAssignment links one content item to one reviewer for a review cycle.
type ReviewAssignment struct {
	AssignmentID  int        `gorm:"primaryKey;column:assignment_id" json:"assignment_id"`
	ContentItemID int        `gorm:"column:content_item_id" json:"content_item_id"`
	ReviewerID    int        `gorm:"column:reviewer_id" json:"reviewer_id"`
	AssignedBy    int        `gorm:"column:assigned_by" json:"assigned_by"`
	Status        string     `gorm:"column:status" json:"status"`
	Note          *string    `gorm:"column:note" json:"note,omitempty"`
	AssignedAt    time.Time  `gorm:"column:assigned_at" json:"assigned_at"`
	ResolvedAt    *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	// Relations
	ContentItem *ContentItem `gorm:"foreignKey:ContentItemID" json:"content_item,omitempty"`
	Reviewer    *User        `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
}

// ReviewNote is one entry in the append-only feedback log of a content item.
type ReviewNote struct {
	NoteID        int       `gorm:"primaryKey;column:note_id" json:"note_id"`
	ContentItemID int       `gorm:"column:content_item_id" json:"content_item_id"`
	AuthorID      int       `gorm:"column:author_id" json:"author_id"`
	Note          string    `gorm:"column:note" json:"note"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// ContentStatusHistory tracks historical state changes for content items.
type ContentStatusHistory struct {
	HistoryID     int       `gorm:"primaryKey;column:history_id" json:"history_id"`
	ContentItemID int       `gorm:"column:content_item_id" json:"content_item_id"`
	OldState      *string   `gorm:"column:old_state" json:"old_state"`
	NewState      string    `gorm:"column:new_state" json:"new_state"`
	OldSubstate   *string   `gorm:"column:old_substate" json:"old_substate"`
	NewSubstate   string    `gorm:"column:new_substate" json:"new_substate"`
	ChangedBy     int       `gorm:"column:changed_by" json:"changed_by"`
	Reason        *string   `gorm:"column:reason" json:"reason"`
	Notes         *string   `gorm:"column:notes" json:"notes"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides
func (ReviewAssignment) TableName() string {
	return "review_assignments"
}

func (ReviewNote) TableName() string {
	return "review_notes"
}

func (ContentStatusHistory) TableName() string {
	return "content_status_history"
}

// IsResolved reports whether the assignment has reached a terminal status.
func (a *ReviewAssignment) IsResolved() bool {
	return a.Status != AssignmentStatusPending
}
