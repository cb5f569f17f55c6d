package domain

import (
	"fmt"
	"time"
)

// DefaultQuotaBytes — лимит хранилища, выдаваемый новому пользователю (100 MiB).
const DefaultQuotaBytes int64 = 100 * 1024 * 1024

type StorageQuota struct {
	ID                  int64     `json:"id" db:"id"`
	OwnerID             string    `json:"owner_id" db:"owner_id"`
	MaxBytes            int64     `json:"max_bytes" db:"max_bytes"`
	UsedBytes           int64     `json:"used_bytes" db:"used_bytes"`
	ProfilePictureBytes int64     `json:"profile_picture_bytes" db:"profile_picture_bytes"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// Remaining возвращает свободное место, не опускаясь ниже нуля.
func (q *StorageQuota) Remaining() int64 {
	if q.UsedBytes >= q.MaxBytes {
		return 0
	}
	return q.MaxBytes - q.UsedBytes
}

type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}

// QuotaExceededError возвращается, когда операция не помещается в лимит.
// К моменту возврата ошибки уже загруженный внешний объект удален.
type QuotaExceededError struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
	Attempted int64 `json:"attempted"`
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: attempted %d bytes, %d of %d used (%d remaining)",
		e.Attempted, e.Used, e.Limit, e.Remaining)
}
