package domain

import "errors"

// Error kinds. Adapters tag their failures with one of these so callers can branch with errors.Is.
var (
	// ErrConfiguration indicates missing credentials or an invalid configuration value.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbedding indicates the embedding model could not produce a vector.
	ErrEmbedding = errors.New("embedding failure")

	// ErrStoreUnavailable indicates the vector store could not be reached or rejected a call.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrGeneration indicates the generation model call failed.
	ErrGeneration = errors.New("generation failure")

	// ErrValidation indicates missing or malformed user input.
	ErrValidation = errors.New("validation error")

	// ErrNamespaceNotFound indicates the namespace has no backing storage.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrAlreadyExists indicates a namespace already exists.
	ErrAlreadyExists = errors.New("already exists")
)

var kinds = []error{
	ErrConfiguration,
	ErrEmbedding,
	ErrStoreUnavailable,
	ErrGeneration,
	ErrValidation,
	ErrNamespaceNotFound,
	ErrAlreadyExists,
}

// KindError tags an underlying error with a kind while keeping its message.
type KindError struct {
	Kind error
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }

func (e *KindError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Classify tags err with kind unless it already carries a kind.
func Classify(kind, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return &KindError{Kind: kind, Err: err}
}

// KindOf returns the kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a short machine-readable name for the kind carried by err.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrConfiguration:
		return "configuration"
	case ErrEmbedding:
		return "embedding"
	case ErrStoreUnavailable:
		return "store_unavailable"
	case ErrGeneration:
		return "generation"
	case ErrValidation:
		return "validation"
	case ErrNamespaceNotFound:
		return "namespace_not_found"
	case ErrAlreadyExists:
		return "already_exists"
	}
	if err == nil {
		return ""
	}
	return "unknown"
}
