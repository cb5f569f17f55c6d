package service

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"profilevault/internal/domain"
	"profilevault/internal/service/s3"
)

// FileService — оркестраторы загрузки и удаления файлов. Держит леджер
// и реестр согласованными при частичных отказах внешнего хранилища.
type FileService struct {
	fileRepo     fileRegistry
	sectionRepo  sectionStore
	s3Client     s3.Storage
	quotaService *StorageQuotaService
}

func NewFileService(
	fileRepo fileRegistry,
	sectionRepo sectionStore,
	s3Client s3.Storage,
	quotaService *StorageQuotaService,
) *FileService {
	return &FileService{
		fileRepo:     fileRepo,
		sectionRepo:  sectionRepo,
		s3Client:     s3Client,
		quotaService: quotaService,
	}
}

// UploadFiles загружает файлы в секцию: внешняя загрузка → резервирование
// байтов → запись метаданных. Размеры берутся из ответа хранилища, а место
// резервируется атомарным TryReserve, чтобы две параллельные загрузки не
// проскочили лимит через check-then-act.
func (s *FileService) UploadFiles(
	ctx context.Context,
	p domain.Principal,
	sectionID int64,
	headers []*multipart.FileHeader,
) ([]domain.File, error) {
	if len(headers) == 0 {
		return nil, domain.ErrNoFiles
	}

	section, err := s.sectionRepo.GetSectionByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	ownerID := section.OwnerID
	if !p.CanActFor(ownerID) {
		return nil, domain.ErrAccessDenied
	}

	// Ранний отказ по заявленным клиентом размерам. Не гарантия:
	// настоящую проверку делает TryReserve по реальным размерам.
	var declared int64
	for _, h := range headers {
		declared += h.Size
	}
	quota, err := s.quotaService.GetQuota(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	if declared > quota.Remaining() {
		return nil, &domain.QuotaExceededError{
			Used:      quota.UsedBytes,
			Limit:     quota.MaxBytes,
			Remaining: quota.Remaining(),
			Attempted: declared,
		}
	}

	// Загружаем во внешнее хранилище
	uploaded := make([]*s3.UploadResult, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.cleanupUploaded(ctx, uploaded)
			return nil, fmt.Errorf("failed to open file %s: %w", h.Filename, err)
		}

		key := sectionFileKey(ownerID, sectionID, uuid.New().String())
		result, uploadErr := s.s3Client.UploadFile(ctx, key, f)
		f.Close()
		if uploadErr != nil {
			// Ничего еще не записано — чистый откат уже загруженного
			s.cleanupUploaded(ctx, uploaded)
			return nil, fmt.Errorf("failed to upload %s: %w", h.Filename, uploadErr)
		}

		uploaded = append(uploaded, result)
	}

	var total int64
	for _, u := range uploaded {
		total += u.SizeBytes
	}

	reserved, err := s.quotaService.TryReserve(ctx, ownerID, total)
	if err != nil {
		s.cleanupUploaded(ctx, uploaded)
		return nil, fmt.Errorf("failed to reserve quota: %w", err)
	}
	if !reserved {
		s.cleanupUploaded(ctx, uploaded)
		quota, qErr := s.quotaService.GetQuota(ctx, ownerID)
		if qErr != nil {
			return nil, fmt.Errorf("failed to get quota after refused reservation: %w", qErr)
		}
		return nil, &domain.QuotaExceededError{
			Used:      quota.UsedBytes,
			Limit:     quota.MaxBytes,
			Remaining: quota.Remaining(),
			Attempted: total,
		}
	}

	files := make([]domain.File, 0, len(uploaded))
	for _, u := range uploaded {
		files = append(files, domain.File{
			ExternalID: u.Key,
			URL:        u.URL,
			SectionID:  sectionID,
			SizeBytes:  u.SizeBytes,
			OwnerID:    ownerID,
		})
	}

	if err := s.fileRepo.SaveMany(ctx, files); err != nil {
		// Резерв снимаем, иначе байты останутся без записей. Сами объекты
		// во внешнем хранилище не трогаем — осиротевшие объекты известный
		// пробел, фиксируем их в логе.
		if decErr := s.quotaService.Decrease(ctx, ownerID, total); decErr != nil {
			log.Printf("[FileService] failed to release reservation of %d bytes for %s: %v", total, ownerID, decErr)
		}
		for _, u := range uploaded {
			log.Printf("[FileService] orphaned external object after db failure: %s", u.Key)
		}
		return nil, fmt.Errorf("failed to save file records: %w", err)
	}

	return files, nil
}

// cleanupUploaded удаляет уже загруженные объекты при откате загрузки
func (s *FileService) cleanupUploaded(ctx context.Context, uploaded []*s3.UploadResult) {
	for _, u := range uploaded {
		if err := s.s3Client.DeleteObject(ctx, u.Key); err != nil {
			log.Printf("[FileService] failed to delete object %s during rollback: %v", u.Key, err)
		}
	}
}

// DeleteFilesFromSections удаляет файлы по секциям. Байты списываются только
// за записи, принадлежащие targetUserID: администратор, удаляющий чужие
// файлы, не должен кредитовать не тот счет. Частичные отказы внешнего
// хранилища складываются в одну агрегатную ошибку с количеством.
func (s *FileService) DeleteFilesFromSections(
	ctx context.Context,
	p domain.Principal,
	targetUserID string,
	sections []domain.SectionFiles,
) error {
	if targetUserID == "" {
		targetUserID = p.UserID
	}
	if !p.CanActFor(targetUserID) {
		return domain.ErrAccessDenied
	}

	var (
		total       int64
		failedCount int
		merr        *multierror.Error
	)

	for _, entry := range sections {
		if len(entry.ExternalIDs) == 0 {
			continue
		}

		deleted, err := s.fileRepo.DeleteByExternalIDs(ctx, entry.ExternalIDs)
		if err != nil {
			return fmt.Errorf("failed to delete records for section %d: %w", entry.SectionID, err)
		}
		if len(deleted) == 0 {
			continue
		}

		keys := make([]string, 0, len(deleted))
		for _, rec := range deleted {
			keys = append(keys, rec.ExternalID)
		}

		failed, err := s.s3Client.DeleteObjects(ctx, keys)
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		for _, key := range failed {
			failedCount++
			merr = multierror.Append(merr, fmt.Errorf("object %s not deleted", key))
		}

		for _, rec := range deleted {
			if rec.OwnerID == targetUserID {
				total += rec.SizeBytes
			} else {
				log.Printf("[FileService] skipping %d bytes of %s owned by %s (accounting target %s)",
					rec.SizeBytes, rec.ExternalID, rec.OwnerID, targetUserID)
			}
		}
	}

	// Записи уже удалены — списываем байты независимо от судьбы внешних
	// объектов, иначе леджер разойдется с реестром
	if total > 0 {
		if err := s.quotaService.Decrease(ctx, targetUserID, total); err != nil {
			return fmt.Errorf("failed to decrease used space: %w", err)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return fmt.Errorf("failed to delete %d objects from media store: %w", failedCount, err)
	}

	return nil
}

// FilesBySection отдает файлы секции.
func (s *FileService) FilesBySection(ctx context.Context, p domain.Principal, sectionID int64) ([]domain.File, error) {
	section, err := s.sectionRepo.GetSectionByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if !section.IsPublic && !p.CanActFor(section.OwnerID) {
		return nil, domain.ErrAccessDenied
	}
	return s.fileRepo.FindBySection(ctx, sectionID)
}
