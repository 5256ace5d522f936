package domain

import "errors"

// Evaluation outcomes reported to callers. The messages are part of the
// external contract and are returned verbatim in reports.
var (
	ErrInvalidSpecies    = errors.New("Animal inválido")       //nolint:staticcheck // user-facing literal
	ErrInvalidQuantity   = errors.New("Quantidade inválida")   //nolint:staticcheck // user-facing literal
	ErrNoViableEnclosure = errors.New("Não há recinto viável") //nolint:staticcheck // user-facing literal
)

// IsEvaluationError reports whether err is one of the three evaluation outcomes.
func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrInvalidSpecies) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrNoViableEnclosure)
}
