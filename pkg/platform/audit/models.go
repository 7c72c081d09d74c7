// Package audit carries ledger events from the registries to an event sink.
//
// Registries emit one Event per accepted mutation after the mutation commits.
// Emission is best-effort: a failed emit is logged and counted by the caller but
// never rolls back ledger state.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "visitledger/pkg/domain"
)

// Action names the ledger mutation an event records.
type Action string

const (
	ActionCredentialIssued      Action = "credential_issued"
	ActionCollectionInitialized Action = "collection_initialized"
	ActionCollectionDistributed Action = "collection_distributed"
	ActionCollectionTransferred Action = "collection_transferred"
	ActionOperatorApprovalSet   Action = "operator_approval_set"
)

// Event is transport-agnostic so sinks can fan out.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Action    Action            `json:"action"`
	Actor     id.Address        `json:"actor"`
	Subject   id.Address        `json:"subject"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewEvent stamps an event with a fresh ID and timestamp.
func NewEvent(action Action, actor, subject id.Address, details map[string]string, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Action:    action,
		Actor:     actor,
		Subject:   subject,
		Timestamp: now,
		Details:   details,
	}
}

// Publisher accepts events. Sinks (memory, Postgres, Kafka) and the buffering
// worker all implement it.
//
//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Publisher
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
