package preview

import (
	"context"
	"fmt"

	"github.com/h2non/bimg"

	"profilevault/internal/service/s3"
)

const (
	thumbSize     = 256              // сторона миниатюры в пикселях
	jpegQuality   = 85               // качество JPEG
	previewPrefix = "previews/profile_pictures/" // префикс миниатюр в S3
)

// Service генерирует и отдает миниатюры аватаров. Всё best effort:
// отсутствие миниатюры не ломает ни профиль, ни учет.
type Service struct {
	s3Client s3.Storage
}

func NewService(s3Client s3.Storage) *Service {
	return &Service{s3Client: s3Client}
}

func thumbnailKey(ownerID string) string {
	return previewPrefix + ownerID + ".jpg"
}

// GenerateProfileThumbnail сжимает картинку до квадратной миниатюры
// и кладет ее под фиксированным ключом пользователя.
func (s *Service) GenerateProfileThumbnail(ctx context.Context, ownerID string, data []byte) error {
	options := bimg.Options{
		Width:   thumbSize,
		Height:  thumbSize,
		Crop:    true,
		Gravity: bimg.GravityCentre,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	}

	thumb, err := bimg.NewImage(data).Process(options)
	if err != nil {
		return fmt.Errorf("failed to resize image: %w", err)
	}

	if _, err := s.s3Client.UploadBytes(ctx, thumbnailKey(ownerID), thumb, "image/jpeg"); err != nil {
		return fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	return nil
}

// GetProfileThumbnail отдает миниатюру пользователя.
func (s *Service) GetProfileThumbnail(ctx context.Context, ownerID string) (s3.Object, error) {
	return s.s3Client.GetObject(ctx, thumbnailKey(ownerID))
}

// DeleteProfileThumbnail удаляет миниатюру пользователя.
func (s *Service) DeleteProfileThumbnail(ctx context.Context, ownerID string) error {
	return s.s3Client.DeleteObject(ctx, thumbnailKey(ownerID))
}
