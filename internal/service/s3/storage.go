// storage.go
package s3

import (
	"context"
	"io"
	"mime/multipart"
)

// Object определяет интерфейс для объектов S3
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// s3Object реализует интерфейс Object
type s3Object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *s3Object) ContentLength() int64 {
	return o.contentLength
}

func (o *s3Object) ContentType() string {
	return o.contentType
}

// UploadResult — ответ хранилища на загрузку. SizeBytes берется из HeadObject
// после загрузки: учет квот доверяет только размеру, который видит хранилище.
type UploadResult struct {
	Key       string
	URL       string
	SizeBytes int64
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем
type Storage interface {
	UploadFile(ctx context.Context, key string, file multipart.File) (*UploadResult, error)
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error)
	GetObject(ctx context.Context, key string) (Object, error)
	DeleteObject(ctx context.Context, key string) error
	// DeleteObjects удаляет пачку ключей и возвращает те, что удалить не вышло
	DeleteObjects(ctx context.Context, keys []string) ([]string, error)
	// DeleteFolder удаляет все объекты под префиксом
	DeleteFolder(ctx context.Context, prefix string) error
	ObjectURL(key string) string
}
