package manifest

import "errors"

var (
	// ErrEntrypointNotFound indicates the requested entry point is absent from the entry point set
	ErrEntrypointNotFound = errors.New("entrypoint not found")
	// ErrFileNotFound indicates a seed or stats document does not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidFormat indicates a document could not be decoded into the expected shape
	ErrInvalidFormat = errors.New("invalid format")
	// ErrUnsupportedExt indicates a document extension that is neither JSON nor YAML
	ErrUnsupportedExt = errors.New("unsupported file extension")
)
