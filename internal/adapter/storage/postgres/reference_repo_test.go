package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"digital-wallet/internal/core/domain"
	"digital-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReferenceRepo(mock)
	rec := &domain.ReferenceRecord{ReferenceID: "tx-1", Checksum: "abc", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlement_references").
		WithArgs(rec.ReferenceID, rec.Checksum, rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReferenceRepo(mock)
	rec := &domain.ReferenceRecord{ReferenceID: "tx-1", Checksum: "abc", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settlement_references").
		WithArgs(rec.ReferenceID, rec.Checksum, rec.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintReferencePK})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrDuplicateReference))
}

func TestReferenceRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReferenceRepo(mock)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM settlement_references WHERE reference_id").
		WithArgs("tx-1").
		WillReturnRows(pgxmock.NewRows([]string{"reference_id", "checksum", "created_at"}).
			AddRow("tx-1", "abc", now))

	rec, err := repo.Get(context.Background(), "tx-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc", rec.Checksum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReferenceRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM settlement_references").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec, err := repo.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      "user-1",
		Action:       domain.AuditActionCredit,
		ResourceType: "wallet",
		ResourceID:   "w-1",
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.ActorID, "CREDIT", entry.ResourceType,
			entry.ResourceID, entry.Details, entry.IPAddress, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}
