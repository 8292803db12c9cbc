package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataValidation is the parent of every data-sufficiency failure.
// Callers can recover from it by collecting more questionnaire data.
var ErrDataValidation = errors.New("training data validation failed")

var (
	ErrEmptyDataset     = fmt.Errorf("%w: training dataset is empty, no responses found in database", ErrDataValidation)
	ErrInsufficientData = fmt.Errorf("%w: insufficient training data", ErrDataValidation)
	ErrMissingLabel     = fmt.Errorf("%w: missing label column in training data", ErrDataValidation)
	ErrNoFeatures       = fmt.Errorf("%w: no feature columns found in training data", ErrDataValidation)
)

// SchemaError reports that the source table has none of the candidate
// answer columns.
type SchemaError struct {
	Table      string
	Candidates []string
	Found      []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("could not find a response column in %s (tried %s); found columns: [%s]",
		e.Table, strings.Join(e.Candidates, ", "), strings.Join(e.Found, ", "))
}

// IsDataValidation reports whether err is a recoverable data-sufficiency error.
func IsDataValidation(err error) bool {
	return errors.Is(err, ErrDataValidation)
}
