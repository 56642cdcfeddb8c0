package services

import (
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
)

// InboxNotifier stores notifications for the in-app inbox.
type InboxNotifier struct {
	db  *gorm.DB
	now func() time.Time
}

func NewInboxNotifier(db *gorm.DB) *InboxNotifier {
	if db == nil {
		db = config.DB
	}
	return &InboxNotifier{db: db, now: time.Now}
}

func (n *InboxNotifier) Notify(ctx context.Context, userID uint, eventType string, payload map[string]string) error {
	title, body := renderMessage(eventType, payload)
	row := models.Notification{
		UserID:    userID,
		EventType: eventType,
		Title:     title,
		Message:   body,
		Type:      notificationType(eventType),
		CreateAt:  n.now(),
	}
	if raw := payload["submission_id"]; raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			subID := uint(id)
			row.RelatedSubmissionID = &subID
		}
	}
	if err := n.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store inbox notification: %w", err)
	}
	return nil
}

func notificationType(eventType string) string {
	switch eventType {
	case EventReviewOverdue:
		return "warning"
	case EventDecisionRecorded, EventSubmissionReceived:
		return "success"
	}
	return "info"
}

// MailNotifier emails the user registered under userID.
type MailNotifier struct {
	db       *gorm.DB
	settings config.MailSettings
	send     func(settings config.MailSettings, to []string, subject, html string) error
}

func NewMailNotifier(db *gorm.DB, settings config.MailSettings) *MailNotifier {
	if db == nil {
		db = config.DB
	}
	return &MailNotifier{db: db, settings: settings, send: config.SendMail}
}

func (n *MailNotifier) Notify(ctx context.Context, userID uint, eventType string, payload map[string]string) error {
	if !n.settings.Configured() {
		return nil
	}
	var user models.User
	if err := n.db.WithContext(ctx).
		Select("user_id", "user_fname", "user_lname", "email").
		Where("user_id = ? AND delete_at IS NULL", userID).
		First(&user).Error; err != nil {
		return fmt.Errorf("load recipient %d: %w", userID, err)
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil
	}
	title, body := renderMessage(eventType, payload)
	if err := n.send(n.settings, []string{user.Email}, title, buildEmailHTML(title, user.DisplayName(), body)); err != nil {
		return fmt.Errorf("send %s to user %d: %w", eventType, userID, err)
	}
	return nil
}

func buildEmailHTML(subject, recipientName, message string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "colleague"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString("Dear " + name + ",")
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage)
}
