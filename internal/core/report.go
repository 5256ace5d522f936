package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"habitatcore/pkg/domain"
)

// Report is the external result shape: either the viable enclosure lines or
// the error message, never both.
type Report struct {
	RecintosViaveis []string `json:"recintosViaveis,omitempty"`
	Erro            string   `json:"erro,omitempty"`
}

// Failed reports whether the report carries an error message.
func (r Report) Failed() bool {
	return r.Erro != ""
}

// NewReport converts an evaluation outcome into a Report.
func NewReport(feas Feasibility, err error) Report {
	if err != nil {
		return Report{Erro: err.Error()}
	}
	return Report{RecintosViaveis: feas.Descriptions()}
}

// Analyze evaluates the request and returns its external representation.
func (e *Evaluator) Analyze(ctx context.Context, species string, quantity int) Report {
	return NewReport(e.Evaluate(ctx, species, quantity))
}

// Request is the JSON request document: {"animal": "MACACO", "quantidade": 2}.
type Request struct {
	Animal     string      `json:"animal"`
	Quantidade json.Number `json:"quantidade"`
}

// DecodeRequest parses a JSON request. Malformed documents yield a wrapped
// decoding error; the quantity is checked by ParseQuantity.
func DecodeRequest(r io.Reader) (Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// MaxQuantity is the largest group size accepted from textual requests.
const MaxQuantity = math.MaxInt32

// ParseQuantity converts a textual quantity into an integer in
// [1, MaxQuantity]. Anything else, including "2.5" and "", is reported as
// domain.ErrInvalidQuantity. Integral decimals such as "2.0" are accepted.
func ParseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n <= 0 || n > MaxQuantity {
			return 0, domain.ErrInvalidQuantity
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f <= 0 || f > MaxQuantity {
		return 0, domain.ErrInvalidQuantity
	}
	return int(f), nil
}

// AnalyzeRequest decodes a JSON request from r and evaluates it. Decoding
// failures are reported through Report.Erro like any other failure.
func (e *Evaluator) AnalyzeRequest(ctx context.Context, r io.Reader) Report {
	req, err := DecodeRequest(r)
	if err != nil {
		return Report{Erro: err.Error()}
	}
	quantity, err := ParseQuantity(req.Quantidade.String())
	if err != nil {
		// Zero keeps the evaluator's check order: species before quantity.
		quantity = 0
	}
	return e.Analyze(ctx, req.Animal, quantity)
}
