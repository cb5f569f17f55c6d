package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"profilevault/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// SaveMany вставляет пачку записей целиком в одной транзакции.
// Пустой вход — no-op.
func (r *FileRepository) SaveMany(ctx context.Context, files []domain.File) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO files (external_id, url, section_id, size_bytes, owner_id)
        VALUES (:external_id, :url, :section_id, :size_bytes, :owner_id)`

	if _, err := tx.NamedExecContext(ctx, query, files); err != nil {
		return fmt.Errorf("failed to insert files: %w", err)
	}

	return tx.Commit()
}

func (r *FileRepository) FindBySection(ctx context.Context, sectionID int64) ([]domain.File, error) {
	var files []domain.File
	query := `SELECT * FROM files WHERE section_id = $1`

	if err := r.db.SelectContext(ctx, &files, query, sectionID); err != nil {
		return nil, fmt.Errorf("failed to get files for section %d: %w", sectionID, err)
	}

	return files, nil
}

// DeleteByExternalIDs удаляет записи и возвращает их состояние до удаления:
// вызывающему нужны размеры и настоящие владельцы, чтобы списать байты
// с правильного счета. Пустой вход — no-op.
func (r *FileRepository) DeleteByExternalIDs(ctx context.Context, externalIDs []string) ([]domain.File, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	var deleted []domain.File
	query := `
        DELETE FROM files
        WHERE external_id = ANY($1)
        RETURNING external_id, url, section_id, size_bytes, owner_id, created_at`

	if err := r.db.SelectContext(ctx, &deleted, query, pq.Array(externalIDs)); err != nil {
		return nil, fmt.Errorf("failed to delete files: %w", err)
	}

	return deleted, nil
}

// SizesBySections возвращает пары (external_id, size_bytes) для файлов
// перечисленных секций — для массового удаления секций.
func (r *FileRepository) SizesBySections(ctx context.Context, sectionIDs []int64) ([]domain.FileSize, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}

	var sizes []domain.FileSize
	query := `SELECT external_id, size_bytes FROM files WHERE section_id = ANY($1)`

	if err := r.db.SelectContext(ctx, &sizes, query, pq.Array(sectionIDs)); err != nil {
		return nil, fmt.Errorf("failed to get file sizes: %w", err)
	}

	return sizes, nil
}

// SumSizesByOwner — суммарный размер файлов пользователя, для сверки квоты.
func (r *FileRepository) SumSizesByOwner(ctx context.Context, ownerID string) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE owner_id = $1`

	if err := r.db.GetContext(ctx, &total, query, ownerID); err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}

	return total, nil
}
