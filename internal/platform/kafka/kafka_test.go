package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"

	"visitledger/internal/platform/config"
)

type stubCreator struct {
	resp kadm.CreateTopicResponse
	err  error

	topic      string
	partitions int32
}

func (s *stubCreator) CreateTopic(_ context.Context, partitions int32, _ int16, _ map[string]*string, topic string) (kadm.CreateTopicResponse, error) {
	s.topic = topic
	s.partitions = partitions
	return s.resp, s.err
}

func TestEnsureTopic(t *testing.T) {
	t.Run("creates the topic", func(t *testing.T) {
		creator := &stubCreator{}
		require.NoError(t, EnsureTopic(context.Background(), creator, "ledger", 3))
		assert.Equal(t, "ledger", creator.topic)
		assert.Equal(t, int32(3), creator.partitions)
	})

	t.Run("existing topic is fine", func(t *testing.T) {
		creator := &stubCreator{resp: kadm.CreateTopicResponse{Topic: "ledger", Err: kerr.TopicAlreadyExists}}
		assert.NoError(t, EnsureTopic(context.Background(), creator, "ledger", 1))
	})

	t.Run("other failures surface", func(t *testing.T) {
		creator := &stubCreator{err: errors.New("not controller")}
		err := EnsureTopic(context.Background(), creator, "ledger", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create topic ledger")
	})
}

func TestNew_NoBrokersDisablesKafka(t *testing.T) {
	client, err := New(context.Background(), config.Kafka{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
