package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository"
)

// MaxNotificationPage caps how many notifications one listing returns.
const MaxNotificationPage = 200

// NotificationService reads an owner's notification inbox.
type NotificationService interface {
	// List returns the owner's notifications, newest first. A limit of zero
	// uses repository.DefaultNotificationLimit.
	List(ctx context.Context, ownerID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
}

type notificationService struct {
	store repository.Store
}

// NewNotificationService creates a new instance of NotificationService.
func NewNotificationService(store repository.Store) NotificationService {
	return &notificationService{store: store}
}

func (s *notificationService) List(ctx context.Context, ownerID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if ownerID == uuid.Nil {
		return nil, domainerr.Validation("owner id is required")
	}
	if limit < 0 || limit > MaxNotificationPage {
		return nil, domainerr.Validation("limit must be between 0 and %d", MaxNotificationPage)
	}

	notifications, err := s.store.Repos().Notifications.ListByOwner(ctx, ownerID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
