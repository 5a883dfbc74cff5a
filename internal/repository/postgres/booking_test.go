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

var bookingTestColumns = []string{
	"id", "booking_code", "user_id", "destination_id", "slot_id", "visit_date",
	"num_tickets", "total_price", "status", "payment_method", "payment_reference",
	"payment_details", "created_at", "updated_at",
}

func newBookingTestRepo(t *testing.T) (*BookingRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewBookingRepository(mock), mock
}

func sampleBooking() *domain.Booking {
	now := time.Now().UTC().Truncate(time.Microsecond)
	slotID := "slot-001"
	return &domain.Booking{
		ID:            "bkg-001",
		BookingCode:   "TRV-A1B2C3D4",
		UserID:        "user-001",
		DestinationID: "dest-001",
		SlotID:        &slotID,
		VisitDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		NumTickets:    2,
		TotalPrice:    100000,
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func addBookingRow(rows *pgxmock.Rows, b *domain.Booking, extra ...any) {
	values := []any{
		b.ID, b.BookingCode, b.UserID, b.DestinationID, b.SlotID, b.VisitDate,
		b.NumTickets, b.TotalPrice, b.Status, b.PaymentMethod, b.PaymentReference,
		[]byte(nil), b.CreatedAt, b.UpdatedAt,
	}
	values = append(values, extra...)
	rows.AddRow(values...)
}

// --- Create Tests ---

func TestBookingRepository_Create_ReservesSlot(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE slots").
		WithArgs(b.NumTickets, pgxmock.AnyArg(), *b.SlotID, b.DestinationID, b.VisitDate).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(
			b.ID, b.BookingCode, b.UserID, b.DestinationID, b.SlotID, b.VisitDate,
			b.NumTickets, b.TotalPrice, b.Status, b.PaymentMethod, b.PaymentReference,
			b.PaymentDetails, b.CreatedAt, b.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectCommit()

	err := repo.Create(context.Background(), b)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_NoSlot(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()
	b.SlotID = nil

	mock.ExpectBegin()

	// No slot reserve expected.
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(
			b.ID, b.BookingCode, b.UserID, b.DestinationID, b.SlotID, b.VisitDate,
			b.NumTickets, b.TotalPrice, b.Status, b.PaymentMethod, b.PaymentReference,
			b.PaymentDetails, b.CreatedAt, b.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectCommit()

	err := repo.Create(context.Background(), b)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_CapacityExceeded(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()
	b.NumTickets = 5

	mock.ExpectBegin()

	// Conditional reserve matches no rows.
	mock.ExpectExec("UPDATE slots").
		WithArgs(b.NumTickets, pgxmock.AnyArg(), *b.SlotID, b.DestinationID, b.VisitDate).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	// Diagnostic read: slot matches destination and date but is nearly full.
	mock.ExpectQuery("SELECT destination_id, slot_date, is_active, capacity, booked_count FROM slots").
		WithArgs(*b.SlotID).
		WillReturnRows(pgxmock.NewRows([]string{
			"destination_id", "slot_date", "is_active", "capacity", "booked_count",
		}).AddRow(b.DestinationID, b.VisitDate, true, 50, 48))

	mock.ExpectRollback()

	err := repo.Create(context.Background(), b)
	assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_SlotNotFound(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE slots").
		WithArgs(b.NumTickets, pgxmock.AnyArg(), *b.SlotID, b.DestinationID, b.VisitDate).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectQuery("SELECT destination_id, slot_date, is_active, capacity, booked_count FROM slots").
		WithArgs(*b.SlotID).
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectRollback()

	err := repo.Create(context.Background(), b)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_SlotDestinationMismatch(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE slots").
		WithArgs(b.NumTickets, pgxmock.AnyArg(), *b.SlotID, b.DestinationID, b.VisitDate).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectQuery("SELECT destination_id, slot_date, is_active, capacity, booked_count FROM slots").
		WithArgs(*b.SlotID).
		WillReturnRows(pgxmock.NewRows([]string{
			"destination_id", "slot_date", "is_active", "capacity", "booked_count",
		}).AddRow("other-dest", b.VisitDate, true, 50, 0))

	mock.ExpectRollback()

	err := repo.Create(context.Background(), b)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "slot does not belong to the destination")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_CodeCollision(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE slots").
		WithArgs(b.NumTickets, pgxmock.AnyArg(), *b.SlotID, b.DestinationID, b.VisitDate).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(
			b.ID, b.BookingCode, b.UserID, b.DestinationID, b.SlotID, b.VisitDate,
			b.NumTickets, b.TotalPrice, b.Status, b.PaymentMethod, b.PaymentReference,
			b.PaymentDetails, b.CreatedAt, b.UpdatedAt,
		).
		WillReturnError(errors.New("ERROR: duplicate key value violates unique constraint \"bookings_booking_code_key\" (SQLSTATE 23505)"))

	mock.ExpectRollback()

	err := repo.Create(context.Background(), b)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_Create_BeginError(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), sampleBooking())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- Get Tests ---

func TestBookingRepository_GetByCode_Success(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	rows := pgxmock.NewRows(bookingTestColumns)
	addBookingRow(rows, b)

	mock.ExpectQuery("SELECT").
		WithArgs("TRV-A1B2C3D4").
		WillReturnRows(rows)

	got, err := repo.GetByCode(context.Background(), "TRV-A1B2C3D4")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "bkg-001", got.ID)
	assert.Equal(t, "TRV-A1B2C3D4", got.BookingCode)
	assert.Equal(t, 2, got.NumTickets)
	assert.Equal(t, int64(100000), got.TotalPrice)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	mock.ExpectQuery("SELECT").
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "nonexistent")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- List Tests ---

func TestBookingRepository_List_WithUserFilter(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()
	userID := "user-001"

	rows := pgxmock.NewRows(append(bookingTestColumns, "total_count"))
	addBookingRow(rows, b, 1)

	mock.ExpectQuery("SELECT .+ FROM bookings").
		WithArgs(userID, 20, 0).
		WillReturnRows(rows)

	filter := repository.BookingFilter{UserID: &userID, Page: 1, PerPage: 20}
	bookings, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, total)
	require.Len(t, bookings, 1)
	assert.Equal(t, "bkg-001", bookings[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_List_Empty(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	mock.ExpectQuery("SELECT .+ FROM bookings").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(bookingTestColumns, "total_count")))

	filter := repository.BookingFilter{Page: 1, PerPage: 20}
	bookings, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 0, total)
	assert.Empty(t, bookings)
	assert.NotNil(t, bookings) // should be [] not nil

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- UpdateStatus Tests ---

func TestBookingRepository_UpdateStatus_WithRelease(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(domain.BookingStatusCancelled, pgxmock.AnyArg(), b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec("UPDATE slots").
		WithArgs(b.NumTickets, pgxmock.AnyArg(), *b.SlotID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), b, domain.BookingStatusCancelled, true)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_UpdateStatus_NoRelease(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(domain.BookingStatusConfirmed, pgxmock.AnyArg(), b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	// No slot release expected.
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), b, domain.BookingStatusConfirmed, false)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	b := sampleBooking()
	b.ID = "nonexistent"

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE bookings").
		WithArgs(domain.BookingStatusConfirmed, pgxmock.AnyArg(), b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), b, domain.BookingStatusConfirmed, false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- SetPayment Tests ---

func TestBookingRepository_SetPayment_Success(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	details := []byte(`{"gateway":"midtrans","va_number":"9881234"}`)

	mock.ExpectExec("UPDATE bookings").
		WithArgs("bank_transfer", "pay-ref-001", details, pgxmock.AnyArg(), "bkg-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetPayment(context.Background(), "bkg-001", "bank_transfer", "pay-ref-001", details)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- ExpirePending Tests ---

func TestBookingRepository_ExpirePending_Success(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	cutoff := time.Now().UTC().Add(-30 * time.Minute)

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE slots").
		WithArgs(pgxmock.AnyArg(), cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	mock.ExpectExec("UPDATE bookings").
		WithArgs(pgxmock.AnyArg(), cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	mock.ExpectCommit()

	expired, err := repo.ExpirePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, expired)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ExpirePending_Nothing(t *testing.T) {
	repo, mock := newBookingTestRepo(t)

	cutoff := time.Now().UTC().Add(-30 * time.Minute)

	mock.ExpectBegin()

	mock.ExpectExec("UPDATE slots").
		WithArgs(pgxmock.AnyArg(), cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectExec("UPDATE bookings").
		WithArgs(pgxmock.AnyArg(), cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	mock.ExpectCommit()

	expired, err := repo.ExpirePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	assert.NoError(t, mock.ExpectationsWereMet())
}
