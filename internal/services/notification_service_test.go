package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
	"github.com/stwalsh4118/rentledger/api/internal/repository/memstore"
)

func TestNotificationService_List(t *testing.T) {
	store := memstore.New()
	svc := NewNotificationService(store)
	ctx := context.Background()
	owner := uuid.New()

	repo := store.Repos().Notifications
	require.NoError(t, repo.Insert(ctx, &models.Notification{OwnerID: owner, Message: "first"}))
	require.NoError(t, repo.Insert(ctx, &models.Notification{OwnerID: owner, Message: "second", Read: true}))
	require.NoError(t, repo.Insert(ctx, &models.Notification{OwnerID: uuid.New(), Message: "someone else"}))

	all, err := svc.List(ctx, owner, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Message)

	unread, err := svc.List(ctx, owner, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "first", unread[0].Message)

	_, err = svc.List(ctx, uuid.Nil, false, 0)
	assert.ErrorIs(t, err, domainerr.ErrValidation)

	_, err = svc.List(ctx, owner, false, MaxNotificationPage+1)
	assert.ErrorIs(t, err, domainerr.ErrValidation)
}
