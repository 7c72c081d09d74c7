package handler

import (
	"strings"

	"visitledger/internal/collection/models"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
)

const maxBatchPairs = 256

// BatchRequest is the body of POST /collection/distribute and
// POST /collection/transfer. From is ignored by distribute, which always
// debits the caller.
type BatchRequest struct {
	From     string           `json:"from,omitempty"`
	To       string           `json:"to"`
	ClassIDs []models.ClassID `json:"class_ids"`
	Amounts  []uint64         `json:"amounts"`
	Data     []byte           `json:"data,omitempty"`

	parsedFrom id.Address
	parsedTo   id.Address
	fromSet    bool
}

// Validate parses addresses and bounds the batch. Lengths, class ranges and
// the zero recipient are checked by the ledger so every caller sees the same
// error codes.
func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.ClassIDs) > maxBatchPairs || len(r.Amounts) > maxBatchPairs {
		return dErrors.New(dErrors.CodeInvalidInput, "too many pairs in batch")
	}
	to, err := id.ParseAddress(strings.TrimSpace(r.To))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "to: "+err.Error())
	}
	r.parsedTo = to
	if strings.TrimSpace(r.From) != "" {
		from, err := id.ParseAddress(strings.TrimSpace(r.From))
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "from: "+err.Error())
		}
		if from.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "from must not be the zero address")
		}
		r.parsedFrom = from
		r.fromSet = true
	}
	return nil
}

// OperatorRequest is the body of POST /collection/operators.
type OperatorRequest struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`

	parsedOperator id.Address
}

func (r *OperatorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	operator, err := id.ParseAddress(strings.TrimSpace(r.Operator))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "operator: "+err.Error())
	}
	r.parsedOperator = operator
	return nil
}
