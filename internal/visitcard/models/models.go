package models

import (
	"strconv"
	"time"

	id "visitledger/pkg/domain"
)

const (
	CollectionName   = "Soulbound Visit Card"
	CollectionSymbol = "SBVC"
)

// Soulbound is the registry's transfer policy. While it holds, every
// ownership-changing request is refused before any state is read.
const Soulbound = true

// CredentialID is allocated from a counter that starts at 1 and only grows.
type CredentialID uint64

// FirstCredentialID is the first id a fresh registry allocates.
const FirstCredentialID CredentialID = 1

func (c CredentialID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseCredentialID parses a decimal id. Zero is never allocated and is rejected.
func ParseCredentialID(s string) (CredentialID, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return CredentialID(n), true
}

// Fields are the opaque strings recorded at issuance. There is no update path.
type Fields struct {
	MetadataURI string `json:"metadata_uri"`
	Name        string `json:"name"`
	ExternalID  string `json:"external_id"`
	Course      string `json:"course"`
	Period      string `json:"period"`
}

// Credential is a visit card. One per owner, never mutated, never destroyed.
type Credential struct {
	ID       CredentialID `json:"id"`
	Owner    id.Address   `json:"owner"`
	Fields   Fields       `json:"fields"`
	IssuedAt time.Time    `json:"issued_at"`
}

// IssueRequest names the recipient and the fields to record.
type IssueRequest struct {
	Recipient id.Address
	Fields    Fields
}
