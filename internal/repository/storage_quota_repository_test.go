package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuotaRepoMock(t *testing.T) (*StorageQuotaRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewStorageQuotaRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func quotaRow(ownerID string, used, max int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "owner_id", "max_bytes", "used_bytes", "profile_picture_bytes", "created_at", "updated_at",
	}).AddRow(1, ownerID, max, used, int64(0), now, now)
}

func TestIncreaseSingleStatement(t *testing.T) {
	repo, mock := newQuotaRepoMock(t)

	mock.ExpectExec("UPDATE storage_quotas").
		WithArgs(int64(200), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Increase(context.Background(), "user-1", 200))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecreaseSendsNegativeDelta(t *testing.T) {
	repo, mock := newQuotaRepoMock(t)

	mock.ExpectExec("UPDATE storage_quotas").
		WithArgs(int64(-300), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Decrease(context.Background(), "user-1", 300))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDeltaRowVanishedOnRetry(t *testing.T) {
	repo, mock := newQuotaRepoMock(t)

	// Первый UPDATE промахивается, строки нет
	mock.ExpectExec("UPDATE storage_quotas").
		WithArgs(int64(100), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// GetQuota находит строку (создана параллельно)
	mock.ExpectQuery(`SELECT \* FROM storage_quotas`).
		WithArgs("user-1").
		WillReturnRows(quotaRow("user-1", 0, 1000))

	// Повторный UPDATE снова промахивается — дельта молча пропасть не должна
	mock.ExpectExec("UPDATE storage_quotas").
		WithArgs(int64(100), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Increase(context.Background(), "user-1", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vanished")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNegativeDeltaRejected(t *testing.T) {
	repo, _ := newQuotaRepoMock(t)

	require.Error(t, repo.Increase(context.Background(), "user-1", -1))
	require.Error(t, repo.Decrease(context.Background(), "user-1", -1))
}

func TestTryReserveRefusedWithoutError(t *testing.T) {
	repo, mock := newQuotaRepoMock(t)

	mock.ExpectQuery(`SELECT \* FROM storage_quotas`).
		WithArgs("user-1").
		WillReturnRows(quotaRow("user-1", 900, 1000))

	// Условный UPDATE не прошел по лимиту: отказ, но не ошибка
	mock.ExpectExec("UPDATE storage_quotas").
		WithArgs(int64(200), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	reserved, err := repo.TryReserve(context.Background(), "user-1", 200)
	require.NoError(t, err)
	assert.False(t, reserved)
	require.NoError(t, mock.ExpectationsWereMet())
}
