package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"emgurus-api/config"
	"emgurus-api/models"

	"gorm.io/gorm"
)

// Lifecycle event keys. Each maps to notification_messages templates.
const (
	EventContentSubmitted = "content_submitted"
	EventContentAssigned  = "content_assigned"
	EventChangesRequested = "changes_requested"
	EventContentRejected  = "content_rejected"
	EventContentPublished = "content_published"
	EventFlagOpened       = "flag_opened"
	EventFlagResolved     = "flag_resolved"
)

// maxDeliveryAttempts before an outbox row is marked failed for good.
const maxDeliveryAttempts = 5

// sendMail is swapped out in tests.
var sendMail = config.SendMail

// defaultAudience picks the template variant per event.
var defaultAudience = map[string]string{
	EventContentSubmitted: "admin",
	EventContentAssigned:  "reviewer",
	EventChangesRequested: "author",
	EventContentRejected:  "author",
	EventContentPublished: "author",
	EventFlagOpened:       "admin",
	EventFlagResolved:     "author",
}

// fallbackTemplates keep delivery working when no notification_messages row
// is configured for an event.
var fallbackTemplates = map[string]models.NotificationMessage{
	EventContentSubmitted: {TitleTemplate: "New {{kind}} submitted", BodyTemplate: "\"{{title}}\" was submitted by {{actor_name}} and is waiting for review.", NotifType: "info"},
	EventContentAssigned:  {TitleTemplate: "Review assigned to you", BodyTemplate: "You have been assigned to review \"{{title}}\".", NotifType: "info"},
	EventChangesRequested: {TitleTemplate: "Changes requested", BodyTemplate: "Changes were requested on \"{{title}}\": {{note}}", NotifType: "warning"},
	EventContentRejected:  {TitleTemplate: "Submission rejected", BodyTemplate: "\"{{title}}\" was rejected. {{note}}", NotifType: "error"},
	EventContentPublished: {TitleTemplate: "Published!", BodyTemplate: "\"{{title}}\" has been published.", NotifType: "success"},
	EventFlagOpened:       {TitleTemplate: "Content flagged", BodyTemplate: "\"{{title}}\" was flagged: {{note}}", NotifType: "warning"},
	EventFlagResolved:     {TitleTemplate: "Flag resolved", BodyTemplate: "The flag you raised on \"{{title}}\" was resolved. {{note}}", NotifType: "info"},
}

// OutboxEvent describes a notification to enqueue. Recipients may be given
// by role, by explicit user ids, by raw email addresses, or any mix; the
// dispatcher deduplicates across all of them.
type OutboxEvent struct {
	Event   string
	ItemID  *int
	Role    string
	UserIDs []int
	Emails  []string
	Payload map[string]string
}

// EnqueueNotification writes an outbox row inside the caller's transaction.
// Delivery happens asynchronously; a broken SMTP server can never roll back
// the transition that produced the event.
func EnqueueNotification(tx *gorm.DB, ev OutboxEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	row := models.NotificationOutbox{
		EventKey:      ev.Event,
		ContentItemID: ev.ItemID,
		Payload:       string(payload),
		Status:        models.OutboxStatusPending,
		CreatedAt:     time.Now(),
	}
	if ev.Role != "" {
		role := ev.Role
		row.RecipientRole = &role
	}
	if len(ev.UserIDs) > 0 {
		ids, err := json.Marshal(ev.UserIDs)
		if err != nil {
			return fmt.Errorf("failed to encode recipient ids: %w", err)
		}
		encoded := string(ids)
		row.RecipientIDs = &encoded
	}
	if len(ev.Emails) > 0 {
		emails, err := json.Marshal(ev.Emails)
		if err != nil {
			return fmt.Errorf("failed to encode recipient emails: %w", err)
		}
		encoded := string(emails)
		row.RecipientEmails = &encoded
	}

	return tx.Create(&row).Error
}

// OutboxDispatcher polls the outbox and delivers pending notifications.
type OutboxDispatcher struct {
	db        *gorm.DB
	interval  time.Duration
	batchSize int
}

func NewOutboxDispatcher(db *gorm.DB, interval time.Duration) *OutboxDispatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &OutboxDispatcher{db: db, interval: interval, batchSize: 50}
}

// Start runs the polling loop until the context is cancelled.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.ProcessOnce()
			}
		}
	}()
}

// ProcessOnce drains one batch of pending outbox rows and returns how many
// were delivered.
func (d *OutboxDispatcher) ProcessOnce() int {
	var rows []models.NotificationOutbox
	if err := d.db.Where("status = ?", models.OutboxStatusPending).
		Order("outbox_id ASC").
		Limit(d.batchSize).
		Find(&rows).Error; err != nil {
		log.Printf("outbox poll failed: %v", err)
		return 0
	}

	delivered := 0
	now := time.Now()
	for i := range rows {
		row := &rows[i]
		if err := d.deliver(row); err != nil {
			log.Printf("outbox delivery failed (event=%s id=%d): %v", row.EventKey, row.OutboxID, err)
			attempts := row.Attempts + 1
			status := models.OutboxStatusPending
			if attempts >= maxDeliveryAttempts {
				status = models.OutboxStatusFailed
			}
			message := err.Error()
			d.db.Model(&models.NotificationOutbox{}).
				Where("outbox_id = ?", row.OutboxID).
				Updates(map[string]interface{}{
					"attempts":   attempts,
					"status":     status,
					"last_error": message,
				})
			continue
		}
		delivered++
		d.db.Model(&models.NotificationOutbox{}).
			Where("outbox_id = ?", row.OutboxID).
			Updates(map[string]interface{}{
				"status":   models.OutboxStatusSent,
				"attempts": row.Attempts + 1,
				"sent_at":  now,
			})
	}
	return delivered
}

func (d *OutboxDispatcher) deliver(row *models.NotificationOutbox) error {
	payload := map[string]string{}
	if row.Payload != "" {
		if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
	}

	users, extraEmails, err := resolveRecipients(d.db, row)
	if err != nil {
		return err
	}
	if len(users) == 0 && len(extraEmails) == 0 {
		return nil // nothing to do, counts as delivered
	}

	msg := renderEventMessage(d.db, row.EventKey, payload)

	var relatedItemID *uint
	if row.ContentItemID != nil {
		id := uint(*row.ContentItemID)
		relatedItemID = &id
	}

	now := time.Now()
	emails := make([]string, 0, len(users)+len(extraEmails))
	for _, user := range users {
		notification := models.Notification{
			UserID:        uint(user.UserID),
			Title:         msg.Title,
			Message:       msg.Body,
			Type:          msg.NotifType,
			RelatedItemID: relatedItemID,
			IsRead:        false,
			CreateAt:      now,
		}
		if err := d.db.Create(&notification).Error; err != nil {
			return fmt.Errorf("failed to create in-app notification: %w", err)
		}
		if user.Email != "" {
			emails = append(emails, user.Email)
		}
	}
	emails = append(emails, extraEmails...)
	emails = dedupeStrings(emails)

	if len(emails) > 0 {
		recipientName := ""
		if len(users) == 1 {
			recipientName = users[0].DisplayName()
		}
		html := buildFormalEmailHTML(msg.Title, recipientName, msg.Body)
		sendMailSafe(emails, msg.Title, html)
	}
	return nil
}

// resolveRecipients merges role-based and explicit recipients, deduplicated
// by user id.
func resolveRecipients(db *gorm.DB, row *models.NotificationOutbox) ([]models.User, []string, error) {
	seen := make(map[int]struct{})
	var users []models.User

	if row.RecipientRole != nil && *row.RecipientRole != "" {
		var byRole []models.User
		err := db.
			Joins("JOIN user_roles ON user_roles.user_id = users.user_id").
			Joins("JOIN roles ON roles.role_id = user_roles.role_id").
			Where("roles.role = ? AND users.delete_at IS NULL", *row.RecipientRole).
			Find(&byRole).Error
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve role recipients: %w", err)
		}
		for _, user := range byRole {
			if _, ok := seen[user.UserID]; ok {
				continue
			}
			seen[user.UserID] = struct{}{}
			users = append(users, user)
		}
	}

	if row.RecipientIDs != nil && *row.RecipientIDs != "" {
		var ids []int
		if err := json.Unmarshal([]byte(*row.RecipientIDs), &ids); err != nil {
			return nil, nil, fmt.Errorf("bad recipient id list: %w", err)
		}
		if len(ids) > 0 {
			var byID []models.User
			if err := db.Where("user_id IN ? AND delete_at IS NULL", ids).Find(&byID).Error; err != nil {
				return nil, nil, fmt.Errorf("failed to resolve recipients: %w", err)
			}
			for _, user := range byID {
				if _, ok := seen[user.UserID]; ok {
					continue
				}
				seen[user.UserID] = struct{}{}
				users = append(users, user)
			}
		}
	}

	var emails []string
	if row.RecipientEmails != nil && *row.RecipientEmails != "" {
		if err := json.Unmarshal([]byte(*row.RecipientEmails), &emails); err != nil {
			return nil, nil, fmt.Errorf("bad recipient email list: %w", err)
		}
	}

	return users, emails, nil
}

type renderedMessage struct {
	Title     string
	Body      string
	NotifType string
}

func renderEventMessage(db *gorm.DB, eventKey string, payload map[string]string) renderedMessage {
	audience := payload["audience"]
	if audience == "" {
		audience = defaultAudience[eventKey]
	}

	tmpl, err := fetchNotificationTemplate(db, eventKey, audience)
	if err != nil {
		fallback, ok := fallbackTemplates[eventKey]
		if !ok {
			fallback = models.NotificationMessage{
				TitleTemplate: eventKey,
				BodyTemplate:  payload["title"],
				NotifType:     "info",
			}
		}
		tmpl = &fallback
	}

	notifType := tmpl.NotifType
	if notifType == "" {
		notifType = "info"
	}
	return renderedMessage{
		Title:     applyTemplatePlaceholders(tmpl.TitleTemplate, payload),
		Body:      applyTemplatePlaceholders(tmpl.BodyTemplate, payload),
		NotifType: notifType,
	}
}

func fetchNotificationTemplate(db *gorm.DB, eventKey, sendTo string) (*models.NotificationMessage, error) {
	var tmpl models.NotificationMessage
	if err := db.Where("event_key = ? AND send_to = ? AND is_active = ?", eventKey, sendTo, true).
		First(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func applyTemplatePlaceholders(text string, data map[string]string) string {
	result := text
	for key, value := range data {
		placeholder := "{{" + key + "}}"
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, value)
	}
	return result
}

func sendMailSafe(to []string, subject, html string) {
	if err := sendMail(to, subject, html); err != nil {
		log.Printf("notification email send failed (subject=%q to=%v): %v", subject, to, err)
	}
}

func buildFormalEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	greeting := "Dear colleague,"
	if name != "" {
		greeting = fmt.Sprintf("Dear %s,", name)
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(greeting)
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0 0 0 0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}

// DirectDispatchRequest mirrors the admin notification dispatch endpoint:
// recipients by id, email or role, one subject/body for email, plus optional
// in-app entries.
type DirectDispatchRequest struct {
	ToUserIDs []int    `json:"toUserIds"`
	ToEmails  []string `json:"toEmails"`
	ToRole    string   `json:"toRole"`
	Subject   string   `json:"subject"`
	HTML      string   `json:"html"`
	InApp     []struct {
		Title   string `json:"title"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"inApp"`
}

// DispatchDirect sends a one-off notification immediately and returns the
// number of distinct recipients. Email failure is logged, not returned.
func DispatchDirect(db *gorm.DB, req DirectDispatchRequest) (int, error) {
	if strings.TrimSpace(req.Subject) == "" {
		return 0, Validation("subject is required")
	}

	row := &models.NotificationOutbox{}
	if req.ToRole != "" {
		role := req.ToRole
		row.RecipientRole = &role
	}
	if len(req.ToUserIDs) > 0 {
		ids, _ := json.Marshal(req.ToUserIDs)
		encoded := string(ids)
		row.RecipientIDs = &encoded
	}
	if len(req.ToEmails) > 0 {
		emails, _ := json.Marshal(req.ToEmails)
		encoded := string(emails)
		row.RecipientEmails = &encoded
	}

	users, extraEmails, err := resolveRecipients(db, row)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 && len(extraEmails) == 0 {
		return 0, Validation("no recipients resolved")
	}

	now := time.Now()
	for _, entry := range req.InApp {
		notifType := entry.Type
		if notifType == "" {
			notifType = "info"
		}
		for _, user := range users {
			notification := models.Notification{
				UserID:   uint(user.UserID),
				Title:    entry.Title,
				Message:  entry.Message,
				Type:     notifType,
				IsRead:   false,
				CreateAt: now,
			}
			if err := db.Create(&notification).Error; err != nil {
				return 0, err
			}
		}
	}

	emails := make([]string, 0, len(users)+len(extraEmails))
	for _, user := range users {
		if user.Email != "" {
			emails = append(emails, user.Email)
		}
	}
	emails = append(emails, extraEmails...)
	emails = dedupeStrings(emails)

	if req.HTML != "" && len(emails) > 0 {
		sendMailSafe(emails, req.Subject, req.HTML)
	}

	return len(users) + len(extraEmails), nil
}
