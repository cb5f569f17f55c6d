package domain

import "errors"

// Символические ошибки подсистемы. HTTP-слой переводит их в статусы,
// сами оркестраторы кодов ответов не знают.
var (
	ErrNoFiles              = errors.New("no files provided")
	ErrEmptyInput           = errors.New("empty id list")
	ErrInvalidImageType     = errors.New("unsupported image type")
	ErrEmptyFile            = errors.New("file is empty")
	ErrUserNotFound         = errors.New("user not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrSectionNotFound      = errors.New("section not found")
	ErrSectionLimitExceeded = errors.New("section limit exceeded for role")
	ErrAccessDenied         = errors.New("access denied")
)
