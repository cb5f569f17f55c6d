package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	defaultTimeout   = 30 * time.Second
	uploadTimeout    = 10 * time.Minute
	defaultChunkSize = 5 * 1024 * 1024 // 5MB
)

// Client предоставляет методы для работы с S3-совместимым хранилищем
type Client struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

// NewClient создает новый экземпляр клиента S3
func NewClient(conf *Config) (*Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	if conf.AccessKeyID == "" || conf.SecretAccessKey == "" || conf.Bucket == "" {
		return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(conf.Endpoint),
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	})

	s3Client := &Client{
		client:   client,
		bucket:   conf.Bucket,
		endpoint: strings.TrimRight(conf.Endpoint, "/"),
	}

	// Проверяем подключение к бакету
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := s3Client.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(conf.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return s3Client, nil
}

// isNotFound сообщает, что хранилище не нашло объект. HeadObject отдает
// отсутствие как NotFound, GetObject — как NoSuchKey.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

// ObjectURL возвращает внешний адрес объекта
func (h *Client) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", h.endpoint, h.bucket, key)
}

// UploadFile загружает файл в S3 и возвращает размер, который видит хранилище
func (h *Client) UploadFile(ctx context.Context, key string, file multipart.File) (*UploadResult, error) {
	if key == "" || file == nil {
		return nil, fmt.Errorf("key and file are required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	// Читаем файл в буфер
	buf := bytes.NewBuffer(make([]byte, 0, defaultChunkSize))
	if _, err := io.Copy(buf, file); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to S3: %w", err)
	}

	return h.headResult(ctx, key)
}

// UploadBytes загружает байты в S3
func (h *Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := h.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to upload data to S3: %w", err)
	}

	return h.headResult(ctx, key)
}

// headResult запрашивает у хранилища авторитетный размер объекта
func (h *Client) headResult(ctx context.Context, key string) (*UploadResult, error) {
	head, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object size from S3: %w", err)
	}

	return &UploadResult{
		Key:       key,
		URL:       h.ObjectURL(key),
		SizeBytes: aws.ToInt64(head.ContentLength),
	}, nil
}

// GetObject получает объект из S3
func (h *Client) GetObject(ctx context.Context, key string) (Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	}

	result, err := h.client.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &s3Object{
		ReadCloser:    result.Body,
		contentLength: aws.ToInt64(result.ContentLength),
		contentType:   aws.ToString(result.ContentType),
	}, nil
}

// DeleteObject удаляет объект из S3
func (h *Client) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Проверяем существование объекта перед удалением
	_, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})

	// Если объект не существует, считаем операцию успешной
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to check object existence: %w", err)
	}

	_, err = h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

// DeleteObjects удаляет пачку ключей одним запросом. Возвращает ключи,
// которые хранилище удалить не смогло, — решает, что с ними делать, вызывающий.
func (h *Client) DeleteObjects(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	result, err := h.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(h.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return keys, fmt.Errorf("failed to delete objects from S3: %w", err)
	}

	var failed []string
	for _, e := range result.Errors {
		log.Printf("[S3] failed to delete object %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		failed = append(failed, aws.ToString(e.Key))
	}

	return failed, nil
}

// DeleteFolder удаляет все объекты под префиксом. Нужен для зачистки папок
// секций, в том числе устаревших после переименований.
func (h *Client) DeleteFolder(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix is required")
	}

	var continuationToken *string
	for {
		listCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		page, err := h.client.ListObjectsV2(listCtx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(h.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		if len(page.Contents) > 0 {
			keys := make([]string, 0, len(page.Contents))
			for _, obj := range page.Contents {
				keys = append(keys, aws.ToString(obj.Key))
			}
			if failed, err := h.DeleteObjects(ctx, keys); err != nil {
				return err
			} else if len(failed) > 0 {
				return fmt.Errorf("failed to delete %d objects under prefix %s", len(failed), prefix)
			}
		}

		if !aws.ToBool(page.IsTruncated) {
			return nil
		}
		continuationToken = page.NextContinuationToken
	}
}
