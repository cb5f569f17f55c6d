package domain

import "time"

// File — метаданные загруженного файла. Размер берется только из ответа
// хранилища, клиентским значениям не доверяем.
type File struct {
	ExternalID string    `json:"external_id" db:"external_id"`
	URL        string    `json:"url" db:"url"`
	SectionID  int64     `json:"section_id" db:"section_id"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// FileSize — пара (external_id, size_bytes) для массовых удалений.
type FileSize struct {
	ExternalID string `db:"external_id"`
	SizeBytes  int64  `db:"size_bytes"`
}

// SectionFiles описывает файлы одной секции в запросе на удаление.
type SectionFiles struct {
	SectionID   int64    `json:"section_id"`
	ExternalIDs []string `json:"external_ids"`
}
