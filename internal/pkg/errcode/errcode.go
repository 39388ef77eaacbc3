package errcode

// request level failures
const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
)

// document and persistence failures, data carries the error list
const (
	ErrFormat = 10001000 + iota
	ErrValidation
	ErrStorage
	ErrTimeout
	ErrImportFailed
)
