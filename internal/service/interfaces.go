package service

import (
	"context"
	"fmt"

	"profilevault/internal/domain"
)

// Интерфейсы хранилищ, которые потребляют сервисы. Реализуются
// репозиториями из internal/repository, в тестах подменяются фейками.

type quotaLedger interface {
	GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error)
	Increase(ctx context.Context, ownerID string, deltaBytes int64) error
	Decrease(ctx context.Context, ownerID string, deltaBytes int64) error
	TryReserve(ctx context.Context, ownerID string, deltaBytes int64) (bool, error)
	SetProfilePictureBytes(ctx context.Context, ownerID string, newSize, expectedOldSize int64) error
	UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error
	RecalculateUsedSpace(ctx context.Context, ownerID string) error
	ListOwners(ctx context.Context) ([]string, error)
}

type fileRegistry interface {
	SaveMany(ctx context.Context, files []domain.File) error
	FindBySection(ctx context.Context, sectionID int64) ([]domain.File, error)
	DeleteByExternalIDs(ctx context.Context, externalIDs []string) ([]domain.File, error)
	SizesBySections(ctx context.Context, sectionIDs []int64) ([]domain.FileSize, error)
	SumSizesByOwner(ctx context.Context, ownerID string) (int64, error)
}

type sectionStore interface {
	GetProfile(ctx context.Context, ownerID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetSectionsForUser(ctx context.Context, ownerID string, onlyPublic bool) ([]domain.Section, error)
	GetSectionByID(ctx context.Context, sectionID int64) (*domain.Section, error)
	UpdateProfile(ctx context.Context, ownerID, bio string, sections []domain.SectionInput) (map[int64]int64, error)
	DeleteSectionsByIDs(ctx context.Context, sectionIDs []int64, ownerID string) error
	UpdateProfilePictureKey(ctx context.Context, ownerID string, key *string) error
}

// Раскладка ключей во внешнем хранилище: папка на пользователя и секцию.
func sectionFileKey(ownerID string, sectionID int64, name string) string {
	return fmt.Sprintf("profile_files/%s/%d/%s", ownerID, sectionID, name)
}

func sectionFolderPrefix(ownerID string, sectionID int64) string {
	return fmt.Sprintf("profile_files/%s/%d/", ownerID, sectionID)
}

func profilePictureKey(ownerID, name string) string {
	return fmt.Sprintf("profile_pictures/%s/%s", ownerID, name)
}
