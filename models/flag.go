package models

import "time"

// Flag statuses. A flag runs its own lifecycle independent of the content
// item it targets; a flagged item may stay published while investigated.
const (
	FlagStatusOpen      = "open"
	FlagStatusInReview  = "in_review"
	FlagStatusResolved  = "resolved"
	FlagStatusDismissed = "dismissed"
	FlagStatusArchived  = "archived"
)

// ContentFlag is a quality/issue report raised against a content item.
type ContentFlag struct {
	FlagID         int        `gorm:"primaryKey;column:flag_id" json:"flag_id"`
	ContentItemID  int        `gorm:"column:content_item_id" json:"content_item_id"`
	Ticket         string     `gorm:"column:ticket" json:"ticket"`
	Status         string     `gorm:"column:status" json:"status"`
	FlaggedBy      int        `gorm:"column:flagged_by" json:"flagged_by"`
	AssignedTo     *int       `gorm:"column:assigned_to" json:"assigned_to,omitempty"`
	Reason         string     `gorm:"column:reason" json:"reason"`
	ResolutionNote *string    `gorm:"column:resolution_note" json:"resolution_note,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`

	// Relations
	ContentItem *ContentItem `gorm:"foreignKey:ContentItemID" json:"content_item,omitempty"`
	Flagger     *User        `gorm:"foreignKey:FlaggedBy" json:"flagger,omitempty"`
	Assignee    *User        `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

// TableName specifies the table for ContentFlag.
func (ContentFlag) TableName() string {
	return "content_flags"
}

// IsOpenStatus reports whether the flag still needs attention.
func (f *ContentFlag) IsOpenStatus() bool {
	return f.Status == FlagStatusOpen || f.Status == FlagStatusInReview
}
