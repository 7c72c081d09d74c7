package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "visitledger/pkg/domain"
	audit "visitledger/pkg/platform/audit"
	"visitledger/pkg/platform/audit/mocks"
	"visitledger/pkg/platform/audit/store/memory"
)

var holder = id.MustParseAddress("0x3000000000000000000000000000000000000003")

func newEvent() audit.Event {
	return audit.NewEvent(audit.ActionCredentialIssued, holder, holder, nil, time.Now())
}

func TestWorker_DeliversQueuedEvents(t *testing.T) {
	sink := memory.NewInMemoryStore()
	w := NewWorker(sink, 4, nil)

	require.NoError(t, w.Emit(context.Background(), newEvent()))
	require.NoError(t, w.Emit(context.Background(), newEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	events, err := sink.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestWorker_DropsWhenFull(t *testing.T) {
	w := NewWorker(memory.NewInMemoryStore(), 1, nil)

	require.NoError(t, w.Emit(context.Background(), newEvent()))
	err := w.Emit(context.Background(), newEvent())

	require.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, int64(1), w.Dropped())
}

func TestWorker_CountsSinkFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockPublisher(ctrl)
	sink.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	w := NewWorker(sink, 2, nil)
	require.NoError(t, w.Emit(context.Background(), newEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Run(ctx)

	assert.Equal(t, int64(1), w.Failed())
}
