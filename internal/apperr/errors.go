package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrProtectedEntry = errors.New("protected entry")
	ErrNoEmbeddings   = errors.New("no embeddings available")
	ErrDimension      = errors.New("embedding dimension mismatch")
)

// Detailed carries structured context alongside an error so the tool-call
// boundary can surface it as a details object instead of prose.
type Detailed struct {
	Err     error
	Details map[string]interface{}
}

func (d *Detailed) Error() string { return d.Err.Error() }

func (d *Detailed) Unwrap() error { return d.Err }

// WithDetails wraps err with a details map for the caller-facing payload.
func WithDetails(err error, details map[string]interface{}) error {
	return &Detailed{Err: err, Details: details}
}

// Details returns the details map attached anywhere in err's chain, or nil.
func Details(err error) map[string]interface{} {
	var d *Detailed
	if errors.As(err, &d) {
		return d.Details
	}
	return nil
}
