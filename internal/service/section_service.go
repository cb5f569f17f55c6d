package service

import (
	"context"
	"fmt"
	"log"

	"profilevault/internal/domain"
	"profilevault/internal/service/s3"
)

// SectionService управляет профилем и секциями, включая оркестратор
// удаления секций.
type SectionService struct {
	sectionRepo  sectionStore
	fileRepo     fileRegistry
	s3Client     s3.Storage
	quotaService *StorageQuotaService
}

func NewSectionService(
	sectionRepo sectionStore,
	fileRepo fileRegistry,
	s3Client s3.Storage,
	quotaService *StorageQuotaService,
) *SectionService {
	return &SectionService{
		sectionRepo:  sectionRepo,
		fileRepo:     fileRepo,
		s3Client:     s3Client,
		quotaService: quotaService,
	}
}

// InitProfile создает профиль и строку квоты с дефолтным лимитом.
func (s *SectionService) InitProfile(ctx context.Context, p domain.Principal) (*domain.Profile, error) {
	profile := &domain.Profile{
		OwnerID: p.UserID,
		Level:   1,
	}

	if err := s.sectionRepo.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	// Квота заводится сразу, чтобы первый аплоад не гонялся за строкой
	if _, err := s.quotaService.GetQuota(ctx, p.UserID); err != nil {
		return nil, fmt.Errorf("failed to init quota: %w", err)
	}

	return profile, nil
}

// GetProfile возвращает профиль с секциями. Чужой профиль виден только
// публичными секциями, владелец и администратор видят всё.
func (s *SectionService) GetProfile(ctx context.Context, viewer domain.Principal, ownerID string) (*domain.ProfileWithSections, error) {
	profile, err := s.sectionRepo.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	onlyPublic := !viewer.CanActFor(ownerID)
	sections, err := s.sectionRepo.GetSectionsForUser(ctx, ownerID, onlyPublic)
	if err != nil {
		return nil, err
	}

	return &domain.ProfileWithSections{
		Profile:  profile,
		Sections: sections,
	}, nil
}

// UpdateProfile обновляет bio и секции. Роль user ограничена одной секцией
// во владении: считаются уже существующие секции плюс новые из запроса,
// лимит проверяется до любой записи. Возвращает отображение временных
// клиентских id новых секций в назначенные базой.
func (s *SectionService) UpdateProfile(
	ctx context.Context,
	p domain.Principal,
	bio string,
	sections []domain.SectionInput,
) (map[int64]int64, error) {
	if !p.IsAdmin() {
		if len(sections) > 1 {
			return nil, domain.ErrSectionLimitExceeded
		}

		var newCount int
		for _, input := range sections {
			if !input.Existing {
				newCount++
			}
		}
		if newCount > 0 {
			owned, err := s.sectionRepo.GetSectionsForUser(ctx, p.UserID, false)
			if err != nil {
				return nil, err
			}
			if len(owned)+newCount > 1 {
				return nil, domain.ErrSectionLimitExceeded
			}
		}
	}

	mapping, err := s.sectionRepo.UpdateProfile(ctx, p.UserID, bio, sections)
	if err != nil {
		return nil, err
	}

	return mapping, nil
}

// DeleteSections удаляет секции с файлами. Внешнее хранилище чистится до
// удаления строк: если хранилище откажет, записи останутся на месте и
// операцию можно повторить. Удаление из базы — точка невозврата.
func (s *SectionService) DeleteSections(
	ctx context.Context,
	p domain.Principal,
	ownerID string,
	sectionIDs []int64,
) error {
	if len(sectionIDs) == 0 {
		return domain.ErrEmptyInput
	}

	if ownerID == "" {
		ownerID = p.UserID
	}
	if !p.CanActFor(ownerID) {
		return domain.ErrAccessDenied
	}

	// Все секции должны принадлежать владельцу счета, иначе байты чужих
	// файлов спишутся не туда
	for _, id := range sectionIDs {
		section, err := s.sectionRepo.GetSectionByID(ctx, id)
		if err != nil {
			return err
		}
		if section.OwnerID != ownerID {
			return domain.ErrAccessDenied
		}
	}

	sizes, err := s.fileRepo.SizesBySections(ctx, sectionIDs)
	if err != nil {
		return fmt.Errorf("failed to collect file sizes: %w", err)
	}

	var totalBytes int64
	keys := make([]string, 0, len(sizes))
	for _, fs := range sizes {
		keys = append(keys, fs.ExternalID)
		totalBytes += fs.SizeBytes
	}

	if len(keys) > 0 {
		failed, err := s.s3Client.DeleteObjects(ctx, keys)
		if err != nil {
			return fmt.Errorf("failed to delete objects from media store: %w", err)
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to delete %d objects from media store", len(failed))
		}
	}

	// Зачистка папок секций ловит объекты, которых нет в реестре,
	// например оставшиеся после старых переименований. Только лог.
	for _, id := range sectionIDs {
		if err := s.s3Client.DeleteFolder(ctx, sectionFolderPrefix(ownerID, id)); err != nil {
			log.Printf("[SectionService] failed to delete folder for section %d: %v", id, err)
		}
	}

	if err := s.sectionRepo.DeleteSectionsByIDs(ctx, sectionIDs, ownerID); err != nil {
		return err
	}

	if totalBytes > 0 {
		if err := s.quotaService.Decrease(ctx, ownerID, totalBytes); err != nil {
			return fmt.Errorf("failed to decrease used space: %w", err)
		}
	}

	return nil
}
