package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "visitledger/pkg/domain"
	audit "visitledger/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	owner := id.MustParseAddress("0x1000000000000000000000000000000000000001")
	student := id.MustParseAddress("0x2000000000000000000000000000000000000002")
	now := time.Now()

	store := NewInMemoryStore()
	initialized := audit.NewEvent(audit.ActionCollectionInitialized, owner, owner, nil, now)
	issued := audit.NewEvent(audit.ActionCredentialIssued, owner, student, nil, now)
	distributed := audit.NewEvent(audit.ActionCollectionDistributed, owner, student, nil, now)
	for _, event := range []audit.Event{initialized, issued, distributed} {
		require.NoError(t, store.Emit(ctx, event))
	}

	forStudent, err := store.ListBySubject(ctx, student)
	require.NoError(t, err)
	require.Len(t, forStudent, 2)
	assert.Equal(t, issued.ID, forStudent[0].ID)
	assert.Equal(t, distributed.ID, forStudent[1].ID)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	all[0].Action = "tampered"
	again, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, audit.ActionCollectionInitialized, again[0].Action, "ListAll returns a copy")
}
