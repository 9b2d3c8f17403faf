package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType categorises a notification for the owner's inbox.
type NotificationType string

// Notification types.
const (
	NotificationPayment  NotificationType = "payment"
	NotificationReminder NotificationType = "reminder"
	NotificationOverdue  NotificationType = "overdue"
)

// Severity controls how loudly a notification is surfaced.
type Severity string

// Severities.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Notification is an event addressed to a property owner.
type Notification struct {
	CreatedAt time.Time        `json:"createdAt"`
	Type      NotificationType `json:"type"`
	Severity  Severity         `json:"severity"`
	Message   string           `json:"message"`
	ID        uuid.UUID        `json:"id"`
	OwnerID   uuid.UUID        `json:"ownerId"`
	TenantID  uuid.UUID        `json:"tenantId"`
	Read      bool             `json:"read"`
}
