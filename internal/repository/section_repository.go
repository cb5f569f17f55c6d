package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"profilevault/internal/domain"
)

type SectionRepository struct {
	db *sqlx.DB
}

func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error) {
	var profile domain.Profile
	query := `SELECT * FROM profiles WHERE owner_id = $1`

	err := r.db.GetContext(ctx, &profile, query, ownerID)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &profile, nil
}

func (r *SectionRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
        INSERT INTO profiles (owner_id, bio, level)
        VALUES ($1, $2, $3)
        ON CONFLICT (owner_id) DO NOTHING
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		profile.OwnerID,
		profile.Bio,
		profile.Level,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)

	// Профиль уже существует — не ошибка
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

func (r *SectionRepository) GetSectionsForUser(ctx context.Context, ownerID string, onlyPublic bool) ([]domain.Section, error) {
	var sections []domain.Section
	query := `SELECT * FROM sections WHERE owner_id = $1`
	if onlyPublic {
		query += ` AND is_public = true`
	}
	query += ` ORDER BY id`

	if err := r.db.SelectContext(ctx, &sections, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get sections: %w", err)
	}

	return sections, nil
}

func (r *SectionRepository) GetSectionByID(ctx context.Context, sectionID int64) (*domain.Section, error) {
	var section domain.Section
	query := `SELECT * FROM sections WHERE id = $1`

	err := r.db.GetContext(ctx, &section, query, sectionID)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}

	return &section, nil
}

// UpdateProfile обновляет bio и секции в одной транзакции. Существующие
// секции обновляются на месте, новые вставляются; для новых возвращается
// отображение временного клиентского id в назначенный базой, чтобы
// оптимистичный UI мог сверить свои плейсхолдеры. Если bio не затронул
// ни одной строки, профиля нет — откатываем всё.
func (r *SectionRepository) UpdateProfile(ctx context.Context, ownerID, bio string, sections []domain.SectionInput) (map[int64]int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
        UPDATE profiles
        SET bio = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`,
		bio, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update bio: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return nil, domain.ErrProfileNotFound
	}

	idMapping := make(map[int64]int64)

	for _, section := range sections {
		if section.Existing {
			result, err := tx.ExecContext(ctx, `
                UPDATE sections
                SET title = $1,
                    description = $2,
                    is_public = $3,
                    updated_at = CURRENT_TIMESTAMP
                WHERE id = $4 AND owner_id = $5`,
				section.Title, section.Description, section.IsPublic, section.ID, ownerID)
			if err != nil {
				return nil, fmt.Errorf("failed to update section %d: %w", section.ID, err)
			}

			rows, err := result.RowsAffected()
			if err != nil {
				return nil, fmt.Errorf("failed to get affected rows: %w", err)
			}
			if rows == 0 {
				return nil, fmt.Errorf("section %d: %w", section.ID, domain.ErrSectionNotFound)
			}
			continue
		}

		var newID int64
		err = tx.QueryRowContext(ctx, `
            INSERT INTO sections (owner_id, title, description, is_public)
            VALUES ($1, $2, $3, $4)
            RETURNING id`,
			ownerID, section.Title, section.Description, section.IsPublic,
		).Scan(&newID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert section: %w", err)
		}

		idMapping[section.ID] = newID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return idMapping, nil
}

// DeleteSectionsByIDs удаляет только секции, принадлежащие ownerID —
// авторизация зашита в предикат запроса, а не только в код сервиса.
// Файлы секций удаляются каскадом на уровне базы.
func (r *SectionRepository) DeleteSectionsByIDs(ctx context.Context, sectionIDs []int64, ownerID string) error {
	if len(sectionIDs) == 0 {
		return nil
	}

	query := `DELETE FROM sections WHERE id = ANY($1) AND owner_id = $2`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(sectionIDs), ownerID); err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}

	return nil
}

// UpdateProfilePictureKey переписывает ссылку профиля на текущий аватар.
func (r *SectionRepository) UpdateProfilePictureKey(ctx context.Context, ownerID string, key *string) error {
	query := `
        UPDATE profiles
        SET profile_picture_key = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, key, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update profile picture key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrProfileNotFound
	}

	return nil
}
