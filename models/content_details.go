package models

import (
	"encoding/json"
	"time"
)

// BlogPostDetail holds the blog-specific payload for a content item.
type BlogPostDetail struct {
	DetailID      int        `gorm:"primaryKey;column:detail_id" json:"detail_id"`
	ContentItemID int        `gorm:"column:content_item_id" json:"content_item_id"`
	BodyMarkdown  string     `gorm:"column:body_markdown" json:"body_markdown"`
	CoverImageURL *string    `gorm:"column:cover_image_url" json:"cover_image_url,omitempty"`
	Tags          *string    `gorm:"column:tags" json:"tags,omitempty"` // comma separated
	IsFeatured    bool       `gorm:"column:is_featured" json:"is_featured"`
	CreateAt      time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt      time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt      *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// ExamQuestionDetail holds the exam-question payload: a stem with a set of
// answer options stored as a JSON array.
type ExamQuestionDetail struct {
	DetailID      int        `gorm:"primaryKey;column:detail_id" json:"detail_id"`
	ContentItemID int        `gorm:"column:content_item_id" json:"content_item_id"`
	Stem          string     `gorm:"column:stem" json:"stem"`
	OptionsJSON   string     `gorm:"column:options_json" json:"-"`
	CorrectIndex  int        `gorm:"column:correct_index" json:"correct_index"`
	Explanation   *string    `gorm:"column:explanation" json:"explanation,omitempty"`
	Topic         *string    `gorm:"column:topic" json:"topic,omitempty"`
	Difficulty    *string    `gorm:"column:difficulty" json:"difficulty,omitempty"`
	CreateAt      time.Time  `gorm:"column:create_at" json:"create_at"`
	UpdateAt      time.Time  `gorm:"column:update_at" json:"update_at"`
	DeleteAt      *time.Time `gorm:"column:delete_at" json:"delete_at,omitempty"`
}

// TableName overrides
func (BlogPostDetail) TableName() string {
	return "blog_post_details"
}

func (ExamQuestionDetail) TableName() string {
	return "exam_question_details"
}

// Options decodes the stored answer options.
func (d *ExamQuestionDetail) Options() []string {
	if d.OptionsJSON == "" {
		return nil
	}
	var options []string
	if err := json.Unmarshal([]byte(d.OptionsJSON), &options); err != nil {
		return nil
	}
	return options
}

// SetOptions encodes the answer options for storage.
func (d *ExamQuestionDetail) SetOptions(options []string) error {
	encoded, err := json.Marshal(options)
	if err != nil {
		return err
	}
	d.OptionsJSON = string(encoded)
	return nil
}

// MarshalJSON includes the decoded options in API responses.
func (d ExamQuestionDetail) MarshalJSON() ([]byte, error) {
	type alias ExamQuestionDetail
	return json.Marshal(struct {
		alias
		Options []string `json:"options"`
	}{
		alias:   alias(d),
		Options: d.Options(),
	})
}
