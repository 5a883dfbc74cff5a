package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/repository"
	"github.com/fawwazmw/travelease-api/pkg/database"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
)

var slotTestColumns = []string{
	"id", "destination_id", "slot_date", "start_time", "end_time",
	"capacity", "booked_count", "is_active", "created_at", "updated_at",
}

func newSlotTestRepo(t *testing.T) (*SlotRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewSlotRepository(mock), mock
}

func sampleSlot() *domain.Slot {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Slot{
		ID:            "slot-001",
		DestinationID: "dest-001",
		SlotDate:      time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime:     "09:00",
		EndTime:       "11:00",
		Capacity:      50,
		BookedCount:   0,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestSlotRepository_Create_Success(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	s := sampleSlot()

	mock.ExpectExec("INSERT INTO slots").
		WithArgs(
			s.ID, s.DestinationID, s.SlotDate, s.StartTime, s.EndTime,
			s.Capacity, s.BookedCount, s.IsActive, s.CreatedAt, s.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), s)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_Create_Duplicate(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	s := sampleSlot()

	mock.ExpectExec("INSERT INTO slots").
		WithArgs(
			s.ID, s.DestinationID, s.SlotDate, s.StartTime, s.EndTime,
			s.Capacity, s.BookedCount, s.IsActive, s.CreatedAt, s.UpdatedAt,
		).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)"))

	err := repo.Create(context.Background(), s)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_GetByID_Success(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	s := sampleSlot()
	s.BookedCount = 12

	rows := pgxmock.NewRows(slotTestColumns).AddRow(
		s.ID, s.DestinationID, s.SlotDate, s.StartTime, s.EndTime,
		s.Capacity, s.BookedCount, s.IsActive, s.CreatedAt, s.UpdatedAt,
	)

	mock.ExpectQuery("SELECT").
		WithArgs("slot-001").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "slot-001")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "slot-001", got.ID)
	assert.Equal(t, 50, got.Capacity)
	assert.Equal(t, 12, got.BookedCount)
	assert.Equal(t, 38, got.Available())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "nonexistent")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_List_Success(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	s := sampleSlot()
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(slotTestColumns).AddRow(
		s.ID, s.DestinationID, s.SlotDate, s.StartTime, s.EndTime,
		s.Capacity, s.BookedCount, s.IsActive, s.CreatedAt, s.UpdatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM slots").
		WithArgs("dest-001", from, to).
		WillReturnRows(rows)

	filter := repository.SlotFilter{DestinationID: "dest-001", From: from, To: to}
	slots, err := repo.List(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, "slot-001", slots[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_List_Empty(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM slots").
		WithArgs("dest-001", from, to).
		WillReturnRows(pgxmock.NewRows(slotTestColumns))

	filter := repository.SlotFilter{DestinationID: "dest-001", From: from, To: to, OnlyAvailable: true}
	slots, err := repo.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Empty(t, slots)
	assert.NotNil(t, slots)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_Update_NotFound(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	s := sampleSlot()
	s.ID = "nonexistent"

	mock.ExpectExec("UPDATE slots").
		WithArgs(
			s.SlotDate, s.StartTime, s.EndTime, s.Capacity,
			s.IsActive, pgxmock.AnyArg(), s.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), s)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepository_Deactivate_Success(t *testing.T) {
	repo, mock := newSlotTestRepo(t)

	mock.ExpectExec("UPDATE slots SET is_active = false").
		WithArgs(pgxmock.AnyArg(), "slot-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Deactivate(context.Background(), "slot-001")
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
