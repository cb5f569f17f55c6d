package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"

	"github.com/google/uuid"

	"profilevault/internal/domain"
	"profilevault/internal/service/s3"
)

// Состояния замены аватара. Терминальные — только committed и rolledBack:
// любой путь выхода либо полностью фиксирует леджер, либо полностью его
// возвращает (для внешнего хранилища — best effort).
type pictureState int

const (
	pictureIdle pictureState = iota
	pictureUploaded
	pictureQuotaChecked
	pictureCommitted
	pictureRolledBack
)

func (s pictureState) String() string {
	switch s {
	case pictureIdle:
		return "idle"
	case pictureUploaded:
		return "uploaded"
	case pictureQuotaChecked:
		return "quota_checked"
	case pictureCommitted:
		return "committed"
	case pictureRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// compensation — стек откатов. Шаги снимаются в обратном порядке, отказ
// компенсации только логируется: с внешним хранилищем транзакции нет.
type compensation struct {
	steps []compensationStep
}

type compensationStep struct {
	name string
	undo func(ctx context.Context) error
}

func (c *compensation) push(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

func (c *compensation) rollback(ctx context.Context) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			log.Printf("[PictureService] compensation %q failed: %v", step.name, err)
		}
	}
	c.steps = nil
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type thumbnailer interface {
	GenerateProfileThumbnail(ctx context.Context, ownerID string, data []byte) error
	DeleteProfileThumbnail(ctx context.Context, ownerID string) error
}

// PictureService — оркестратор замены аватара.
type PictureService struct {
	sectionRepo  sectionStore
	s3Client     s3.Storage
	quotaService *StorageQuotaService
	thumbnails   thumbnailer // может быть nil
}

func NewPictureService(
	sectionRepo sectionStore,
	s3Client s3.Storage,
	quotaService *StorageQuotaService,
	thumbnails thumbnailer,
) *PictureService {
	return &PictureService{
		sectionRepo:  sectionRepo,
		s3Client:     s3Client,
		quotaService: quotaService,
		thumbnails:   thumbnails,
	}
}

// UpdateProfilePicture заменяет аватар. Новый файл сначала уходит во внешнее
// хранилище — его ответ дает авторитетный размер, клиентскому не доверяем.
// Дальше сверка с квотой и фиксация; на любом отказе после загрузки стек
// компенсаций возвращает леджер и удаляет новый объект.
func (s *PictureService) UpdateProfilePicture(
	ctx context.Context,
	p domain.Principal,
	header *multipart.FileHeader,
	file multipart.File,
) (*domain.Profile, error) {
	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidImageType, contentType)
	}
	if header.Size <= 0 {
		return nil, domain.ErrEmptyFile
	}

	profile, err := s.sectionRepo.GetProfile(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	quota, err := s.quotaService.GetQuota(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	currentBytes := quota.ProfilePictureBytes

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyFile
	}

	state := pictureIdle
	comp := &compensation{}

	// Шаг 1: загрузка нового объекта
	newKey := profilePictureKey(p.UserID, uuid.New().String())
	uploaded, err := s.s3Client.UploadBytes(ctx, newKey, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload picture: %w", err)
	}
	state = pictureUploaded
	comp.push("delete new object", func(ctx context.Context) error {
		return s.s3Client.DeleteObject(ctx, newKey)
	})

	// Шаг 2: сверка с квотой по размеру из хранилища
	storageChange := uploaded.SizeBytes - currentBytes
	if storageChange > 0 && storageChange > quota.Remaining() {
		comp.rollback(ctx)
		state = pictureRolledBack
		log.Printf("[PictureService] picture replace for %s finished in state %s", p.UserID, state)
		return nil, &domain.QuotaExceededError{
			Used:      quota.UsedBytes,
			Limit:     quota.MaxBytes,
			Remaining: quota.Remaining(),
			Attempted: storageChange,
		}
	}
	state = pictureQuotaChecked

	// Шаг 3: фиксация леджера
	if err := s.quotaService.SetProfilePictureBytes(ctx, p.UserID, uploaded.SizeBytes, currentBytes); err != nil {
		comp.rollback(ctx)
		state = pictureRolledBack
		log.Printf("[PictureService] picture replace for %s finished in state %s", p.UserID, state)
		return nil, fmt.Errorf("failed to commit picture bytes: %w", err)
	}
	comp.push("revert ledger", func(ctx context.Context) error {
		return s.quotaService.SetProfilePictureBytes(ctx, p.UserID, currentBytes, uploaded.SizeBytes)
	})

	// Шаг 4: ссылка профиля на новый объект
	if err := s.sectionRepo.UpdateProfilePictureKey(ctx, p.UserID, &newKey); err != nil {
		comp.rollback(ctx)
		state = pictureRolledBack
		log.Printf("[PictureService] picture replace for %s finished in state %s", p.UserID, state)
		return nil, fmt.Errorf("failed to update profile picture reference: %w", err)
	}

	state = pictureCommitted

	// Старый объект удаляем best effort: учет уже зафиксирован, отказ
	// здесь операцию не отменяет
	if profile.ProfilePictureKey != nil && *profile.ProfilePictureKey != "" {
		if err := s.s3Client.DeleteObject(ctx, *profile.ProfilePictureKey); err != nil {
			log.Printf("[PictureService] failed to delete old picture %s: %v", *profile.ProfilePictureKey, err)
		}
	}

	if s.thumbnails != nil {
		if err := s.thumbnails.GenerateProfileThumbnail(ctx, p.UserID, data); err != nil {
			log.Printf("[PictureService] failed to generate thumbnail for %s: %v", p.UserID, err)
		}
	}

	log.Printf("[PictureService] picture replace for %s finished in state %s", p.UserID, state)

	profile.ProfilePictureKey = &newKey
	return profile, nil
}
