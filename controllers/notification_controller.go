package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"editorial-workflow-api/config"
	"editorial-workflow-api/models"
)

// NotificationController serves the in-app inbox filled by services.InboxNotifier.
type NotificationController struct {
	db  *gorm.DB
	now func() time.Time
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	if db == nil {
		db = config.DB
	}
	return &NotificationController{db: db, now: time.Now}
}

// GET /api/v1/notifications?unreadOnly=&limit=&offset=
func (n *NotificationController) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	unreadOnly := strings.TrimSpace(c.Query("unreadOnly"))
	limit := 20
	offset := 0
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("offset"))); err == nil && v >= 0 {
		offset = v
	}

	q := n.db.WithContext(c.Request.Context()).Model(&models.Notification{}).Where("user_id = ?", actor.ID)
	if unreadOnly == "1" || strings.EqualFold(unreadOnly, "true") {
		q = q.Where("is_read = ?", false)
	}

	var items []models.Notification
	if err := q.Order("create_at DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}

// GET /api/v1/notifications/counter
func (n *NotificationController) Counter(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var unread int64
	if err := n.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.ID, false).
		Count(&unread).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unread": unread})
}

// PATCH /api/v1/notifications/:id/read
func (n *NotificationController) MarkRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	res := n.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("notification_id = ? AND user_id = ?", id, actor.ID).
		Updates(map[string]interface{}{"is_read": true, "update_at": n.now()})
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PATCH /api/v1/notifications/read-all
func (n *NotificationController) MarkAllRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := n.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.ID, false).
		Updates(map[string]interface{}{"is_read": true, "update_at": n.now()}).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
