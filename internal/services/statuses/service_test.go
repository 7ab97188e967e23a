package statuses

import (
	"context"
	"testing"

	"github.com/BearBump/LockerTrack/internal/apperrors"
	"github.com/BearBump/LockerTrack/internal/models"
	"github.com/BearBump/LockerTrack/internal/storage/memlocker"
	"github.com/stretchr/testify/require"
)

func TestService_NameUniqueAmongActiveOnly(t *testing.T) {
	ctx := context.Background()
	svc := New(memlocker.New())

	first, err := svc.Create(ctx, models.StatusCreate{Name: "Delivered", DisplayOrder: 5})
	require.NoError(t, err)

	_, err = svc.Create(ctx, models.StatusCreate{Name: "Delivered", DisplayOrder: 6})
	require.ErrorIs(t, err, apperrors.ErrDuplicateName)

	// names are case-sensitive
	_, err = svc.Create(ctx, models.StatusCreate{Name: "delivered", DisplayOrder: 6})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, first.ID))
	_, err = svc.Create(ctx, models.StatusCreate{Name: "Delivered", DisplayOrder: 7})
	require.NoError(t, err)

	_, err = svc.Get(ctx, first.ID)
	require.ErrorIs(t, err, apperrors.ErrStatusNotFound)

	byName, err := svc.GetByName(ctx, "Delivered")
	require.NoError(t, err)
	require.Equal(t, 7, byName.DisplayOrder)
}

func TestService_ListOrderedByDisplayOrder(t *testing.T) {
	ctx := context.Background()
	svc := New(memlocker.New())
	for _, in := range []models.StatusCreate{
		{Name: "Delivered", DisplayOrder: 4},
		{Name: "Received", DisplayOrder: 1},
		{Name: "In transit", DisplayOrder: 2},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "Received", list[0].Name)
	require.Equal(t, "In transit", list[1].Name)
	require.Equal(t, "Delivered", list[2].Name)
}
