package models

import "time"

type Notification struct {
	NotificationID uint       `gorm:"primaryKey;column:notification_id" json:"notification_id"`
	UserID         uint       `gorm:"column:user_id" json:"user_id"`
	Title          string     `gorm:"column:title" json:"title"`
	Message        string     `gorm:"column:message" json:"message"`
	Type           string     `gorm:"column:type" json:"type"` // info|success|warning|error
	RelatedItemID  *uint      `gorm:"column:related_item_id" json:"related_item_id,omitempty"`
	IsRead         bool       `gorm:"column:is_read" json:"is_read"`
	CreateAt       time.Time  `gorm:"column:create_at" json:"created_at"`
	UpdateAt       *time.Time `gorm:"column:update_at" json:"-"`
}

func (Notification) TableName() string { return "notifications" }

// NotificationMessage is a per-event template. Placeholders of the form
// {{key}} are substituted from the event payload before delivery.
type NotificationMessage struct {
	MessageID     int        `gorm:"primaryKey;column:message_id" json:"message_id"`
	EventKey      string     `gorm:"column:event_key" json:"event_key"`
	SendTo        string     `gorm:"column:send_to" json:"send_to"` // author|reviewer|admin
	TitleTemplate string     `gorm:"column:title_template" json:"title_template"`
	BodyTemplate  string     `gorm:"column:body_template" json:"body_template"`
	NotifType     string     `gorm:"column:notif_type" json:"notif_type"`
	IsActive      bool       `gorm:"column:is_active" json:"is_active"`
	CreateAt      *time.Time `gorm:"column:create_at" json:"create_at"`
	UpdateAt      *time.Time `gorm:"column:update_at" json:"update_at"`
}

func (NotificationMessage) TableName() string { return "notification_messages" }

// Outbox statuses.
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// NotificationOutbox rows are written inside the transaction that commits a
// lifecycle transition and delivered asynchronously by the dispatcher, so a
// failing email can never roll back a committed transition.
type NotificationOutbox struct {
	OutboxID        int        `gorm:"primaryKey;column:outbox_id" json:"outbox_id"`
	EventKey        string     `gorm:"column:event_key" json:"event_key"`
	ContentItemID   *int       `gorm:"column:content_item_id" json:"content_item_id,omitempty"`
	RecipientRole   *string    `gorm:"column:recipient_role" json:"recipient_role,omitempty"`
	RecipientIDs    *string    `gorm:"column:recipient_ids" json:"recipient_ids,omitempty"` // JSON int array
	RecipientEmails *string    `gorm:"column:recipient_emails" json:"recipient_emails,omitempty"`
	Payload         string     `gorm:"column:payload" json:"payload"` // JSON object
	Status          string     `gorm:"column:status" json:"status"`
	Attempts        int        `gorm:"column:attempts" json:"attempts"`
	LastError       *string    `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	SentAt          *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }
