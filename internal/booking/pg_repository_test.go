package booking

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkoutCols = []string{
	"reservation_id", "owner_id", "patient_id", "amount", "gateway", "redirect_url",
	"status", "outcome_message", "expires_at", "created_at", "updated_at",
}

func TestPgRepository_CreateCheckout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	expires := now.Add(15 * time.Minute)

	mock.ExpectQuery("INSERT INTO checkouts").
		WithArgs("R1", "patient-1", "patient-1", int64(500000), "", "", "reserved", expires).
		WillReturnRows(pgxmock.NewRows(checkoutCols).
			AddRow("R1", "patient-1", "patient-1", int64(500000), "", "", "reserved", "", expires, now, now))

	repo := NewPgRepository(mock)
	c, err := repo.CreateCheckout(context.Background(), Checkout{
		ReservationID: "R1",
		OwnerID:       "patient-1",
		PatientID:     "patient-1",
		Amount:        500000,
		ExpiresAt:     expires,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, c.Status)
	assert.Equal(t, expires, c.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetCheckoutNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM checkouts").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).GetCheckout(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCheckoutNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateCheckoutStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE checkouts").
		WithArgs("R1", "paid", "ok", []string{"reserved", "redirected"}).
		WillReturnRows(pgxmock.NewRows(checkoutCols).
			AddRow("R1", "patient-1", "patient-1", int64(10), "vnpay", "https://pay", "paid", "ok", now, now, now))

	c, err := NewPgRepository(mock).UpdateCheckoutStatus(context.Background(), "R1", openStatuses, StatusPaid, "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, c.Status)
	assert.Equal(t, "vnpay", c.Gateway)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_AbandonOpenCheckouts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE checkouts").
		WithArgs("patient-1", "booking abandoned").
		WillReturnRows(pgxmock.NewRows(checkoutCols).
			AddRow("R1", "patient-1", "patient-1", int64(10), "", "", "abandoned", "booking abandoned", now, now, now))

	got, err := NewPgRepository(mock).AbandonOpenCheckouts(context.Background(), "patient-1", "booking abandoned")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusAbandoned, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_FindExpiredCheckouts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	mock.ExpectQuery("FROM checkouts").
		WithArgs(now).
		WillReturnRows(pgxmock.NewRows(checkoutCols).
			AddRow("R1", "o1", "p1", int64(10), "", "", "reserved", "", past, past, past).
			AddRow("R2", "o2", "p2", int64(20), "stripe", "https://s", "redirected", "", past, past, past))

	got, err := NewPgRepository(mock).FindExpiredCheckouts(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "R2", got[1].ReservationID)
	assert.Equal(t, StatusRedirected, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := "R1"
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventCheckoutExpired, &id, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPgRepository(mock).InsertEvent(context.Background(), EventLog{
		EventType:     EventCheckoutExpired,
		ReservationID: &id,
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
