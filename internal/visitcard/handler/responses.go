package handler

import (
	"time"

	"visitledger/internal/visitcard/models"
	"visitledger/pkg/gateway"
)

// IssueResponse is returned by POST /visit-cards.
type IssueResponse struct {
	ID string `json:"id"`
}

// CredentialResponse describes one visit card.
type CredentialResponse struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	MetadataURI  string    `json:"metadata_uri"`
	GatewayURL   string    `json:"gateway_url,omitempty"`
	Name         string    `json:"name"`
	ExternalID   string    `json:"external_id"`
	Course       string    `json:"course"`
	Period       string    `json:"period"`
	IssuedAt     time.Time `json:"issued_at"`
	Transferable bool      `json:"transferable"`
}

func toCredentialResponse(credential *models.Credential, gatewayBase string, transferable bool) CredentialResponse {
	return CredentialResponse{
		ID:           credential.ID.String(),
		Owner:        credential.Owner.Hex(),
		MetadataURI:  credential.Fields.MetadataURI,
		GatewayURL:   gateway.ToGateway(credential.Fields.MetadataURI, gatewayBase),
		Name:         credential.Fields.Name,
		ExternalID:   credential.Fields.ExternalID,
		Course:       credential.Fields.Course,
		Period:       credential.Fields.Period,
		IssuedAt:     credential.IssuedAt,
		Transferable: transferable,
	}
}

// HolderResponse answers GET /holders/{address}/visit-card.
type HolderResponse struct {
	Holder     string              `json:"holder"`
	Balance    uint64              `json:"balance"`
	Credential *CredentialResponse `json:"credential,omitempty"`
}
