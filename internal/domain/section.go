package domain

import "time"

type Section struct {
	ID          int64     `json:"id" db:"id"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	IsPublic    bool      `json:"is_public" db:"is_public"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Profile struct {
	OwnerID           string    `json:"owner_id" db:"owner_id"`
	Bio               string    `json:"bio" db:"bio"`
	Level             int       `json:"level" db:"level"`
	ProfilePictureKey *string   `json:"profile_picture_key,omitempty" db:"profile_picture_key"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// SectionInput — секция из запроса на обновление профиля. Клиент присылает
// id <= 0 для еще не созданных секций; здесь это явный признак Existing,
// чтобы дальше по коду не ветвиться на сентинельных значениях.
type SectionInput struct {
	Existing    bool
	ID          int64 // реальный id для существующей, временный клиентский для новой
	Title       string
	Description string
	IsPublic    bool
}

// ProfileWithSections — ответ на просмотр профиля.
type ProfileWithSections struct {
	Profile  *Profile  `json:"profile"`
	Sections []Section `json:"sections"`
}
