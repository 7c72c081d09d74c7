package handler

import (
	"strings"

	"visitledger/internal/visitcard/models"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
)

const maxFieldLength = 512

// IssueRequest is the HTTP request body for POST /visit-cards.
type IssueRequest struct {
	Recipient   string `json:"recipient"`
	MetadataURI string `json:"metadata_uri"`
	Name        string `json:"name"`
	ExternalID  string `json:"external_id"`
	Course      string `json:"course"`
	Period      string `json:"period"`

	parsedRecipient id.Address
}

// Validate parses the recipient and bounds field sizes. Field contents are
// opaque and stored exactly as sent.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	for name, value := range map[string]string{
		"metadata_uri": r.MetadataURI,
		"name":         r.Name,
		"external_id":  r.ExternalID,
		"course":       r.Course,
		"period":       r.Period,
	} {
		if len(value) > maxFieldLength {
			return dErrors.New(dErrors.CodeInvalidInput, name+" is too long")
		}
	}
	recipient, err := id.ParseAddress(strings.TrimSpace(r.Recipient))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "recipient: "+err.Error())
	}
	r.parsedRecipient = recipient
	return nil
}

// ToModel builds the domain request.
func (r *IssueRequest) ToModel() models.IssueRequest {
	return models.IssueRequest{
		Recipient: r.parsedRecipient,
		Fields: models.Fields{
			MetadataURI: r.MetadataURI,
			Name:        r.Name,
			ExternalID:  r.ExternalID,
			Course:      r.Course,
			Period:      r.Period,
		},
	}
}

// ApproveRequest is the body of POST /visit-cards/{id}/approve. It is decoded
// only so malformed bodies still get a 400; approvals are always refused.
type ApproveRequest struct {
	Operator string `json:"operator"`
	Approved *bool  `json:"approved,omitempty"`
}

func (r *ApproveRequest) Validate() error {
	return nil
}

// TransferRequest is the body of POST /visit-cards/{id}/transfer.
type TransferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Safe bool   `json:"safe"`
	Data []byte `json:"data,omitempty"`
}

func (r *TransferRequest) Validate() error {
	return nil
}
