package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"profilevault/internal/domain"
)

type StorageQuotaRepository struct {
	db *sqlx.DB
}

func NewStorageQuotaRepository(db *sqlx.DB) *StorageQuotaRepository {
	return &StorageQuotaRepository{db: db}
}

func (r *StorageQuotaRepository) GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	var quota domain.StorageQuota

	err := r.db.GetContext(ctx, &quota,
		`SELECT * FROM storage_quotas WHERE owner_id = $1`,
		ownerID)

	if err != nil {
		// Если квота не найдена, создаем новую с дефолтным лимитом
		if err == sql.ErrNoRows {
			quota = domain.StorageQuota{
				OwnerID:   ownerID,
				MaxBytes:  domain.DefaultQuotaBytes,
				UsedBytes: 0,
			}

			if err := r.Create(ctx, &quota); err != nil {
				return nil, fmt.Errorf("failed to create quota: %w", err)
			}
			return &quota, nil
		}
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	return &quota, nil
}

func (r *StorageQuotaRepository) Create(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
        INSERT INTO storage_quotas (owner_id, max_bytes, used_bytes, profile_picture_bytes)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		quota.OwnerID,
		quota.MaxBytes,
		quota.UsedBytes,
		quota.ProfilePictureBytes,
	).Scan(&quota.ID, &quota.CreatedAt, &quota.UpdatedAt)
}

// Increase прибавляет delta к used_bytes одним атомарным UPDATE.
// Одного вызова на одно логическое событие обязан добиваться вызывающий.
func (r *StorageQuotaRepository) Increase(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes < 0 {
		return fmt.Errorf("negative delta %d for increase", deltaBytes)
	}
	return r.applyDelta(ctx, ownerID, deltaBytes)
}

// Decrease вычитает delta из used_bytes с нижней границей в ноль. Слишком
// большая delta не ошибка: дрейф учета схлопывается к нулю, а не уходит в минус.
func (r *StorageQuotaRepository) Decrease(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes < 0 {
		return fmt.Errorf("negative delta %d for decrease", deltaBytes)
	}
	return r.applyDelta(ctx, ownerID, -deltaBytes)
}

func (r *StorageQuotaRepository) applyDelta(ctx context.Context, ownerID string, deltaBytes int64) error {
	query := `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update used space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		// Строки квоты еще нет — создаем дефолтную и повторяем один раз
		if _, err := r.GetQuota(ctx, ownerID); err != nil {
			return err
		}

		result, err = r.db.ExecContext(ctx, query, deltaBytes, ownerID)
		if err != nil {
			return fmt.Errorf("failed to update used space: %w", err)
		}

		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows == 0 {
			// Строка исчезла между созданием и повтором — дельту терять нельзя
			return fmt.Errorf("quota row for owner %s vanished during update", ownerID)
		}
	}

	return nil
}

// TryReserve атомарно прибавляет delta к used_bytes, только если результат
// не превысит лимит. Возвращает false без ошибки, если места не хватило.
func (r *StorageQuotaRepository) TryReserve(ctx context.Context, ownerID string, deltaBytes int64) (bool, error) {
	if deltaBytes < 0 {
		return false, fmt.Errorf("negative delta %d for reserve", deltaBytes)
	}

	// Строка квоты должна существовать, иначе UPDATE молча промахнется
	if _, err := r.GetQuota(ctx, ownerID); err != nil {
		return false, err
	}

	query := `
        UPDATE storage_quotas
        SET used_bytes = used_bytes + $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2
          AND used_bytes + $1 <= max_bytes`

	result, err := r.db.ExecContext(ctx, query, deltaBytes, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to reserve space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// SetProfilePictureBytes переписывает вклад аватара в used_bytes. Читает
// текущее значение под блокировкой строки: два одновременных обновления
// аватара из разных сессий не должны испортить счетчик. Если сохраненное
// значение расходится с ожиданием вызывающего, верим сохраненному.
func (r *StorageQuotaRepository) SetProfilePictureBytes(ctx context.Context, ownerID string, newSize, expectedOldSize int64) error {
	if newSize < 0 {
		return fmt.Errorf("negative profile picture size %d", newSize)
	}

	if _, err := r.GetQuota(ctx, ownerID); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var storedOld int64
	err = tx.QueryRowContext(ctx,
		`SELECT profile_picture_bytes FROM storage_quotas WHERE owner_id = $1 FOR UPDATE`,
		ownerID,
	).Scan(&storedOld)
	if err != nil {
		return fmt.Errorf("failed to lock quota row: %w", err)
	}

	if storedOld != expectedOldSize {
		log.Printf("[QuotaRepository] profile picture bytes mismatch for %s: stored %d, expected %d",
			ownerID, storedOld, expectedOldSize)
	}

	sizeDifference := newSize - storedOld

	_, err = tx.ExecContext(ctx, `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes + $1),
            profile_picture_bytes = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $3`,
		sizeDifference, newSize, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update profile picture bytes: %w", err)
	}

	return tx.Commit()
}

func (r *StorageQuotaRepository) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	query := `
        UPDATE storage_quotas
        SET max_bytes = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("quota not found for owner %s: %w", ownerID, domain.ErrUserNotFound)
	}

	return nil
}

// RecalculateUsedSpace пересчитывает used_bytes из реестра файлов плюс вклад
// аватара. Запускается фоновой сверкой: полы при decrement могут маскировать
// дрейф, здесь он выправляется.
func (r *StorageQuotaRepository) RecalculateUsedSpace(ctx context.Context, ownerID string) error {
	query := `
        UPDATE storage_quotas sq
        SET used_bytes = sq.profile_picture_bytes + COALESCE(
                (SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = sq.owner_id), 0),
            updated_at = CURRENT_TIMESTAMP
        WHERE sq.owner_id = $1`

	result, err := r.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return fmt.Errorf("failed to recalculate used space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		if _, err := r.GetQuota(ctx, ownerID); err != nil {
			return fmt.Errorf("failed to get or create quota: %w", err)
		}
	}

	return nil
}

// ListOwners возвращает владельцев всех квот для фоновой сверки.
func (r *StorageQuotaRepository) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	if err := r.db.SelectContext(ctx, &owners, `SELECT owner_id FROM storage_quotas`); err != nil {
		return nil, fmt.Errorf("failed to list quota owners: %w", err)
	}
	return owners, nil
}
