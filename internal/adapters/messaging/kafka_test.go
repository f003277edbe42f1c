package messaging

import (
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageConversion(t *testing.T) {
	before := time.Now()
	km := messageToKafkaMessage(SearchRequestsTopic, []byte(`{"search_id":"42"}`), "42", map[string]string{"source": "api"})

	require.NotNil(t, km.TopicPartition.Topic)
	assert.Equal(t, SearchRequestsTopic, *km.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, km.TopicPartition.Partition)
	assert.Equal(t, []byte("42"), km.Key)

	msg := kafkaMessageToMessage(km)
	assert.Equal(t, SearchRequestsTopic, msg.Topic)
	assert.Equal(t, "42", msg.Key)
	assert.Equal(t, "api", msg.Headers["source"])
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.PublishedAt.Before(before.Truncate(time.Microsecond)))
	assert.WithinDuration(t, time.Now(), msg.PublishedAt, time.Second)
}

func TestMessageConversion_EmptyKey(t *testing.T) {
	km := messageToKafkaMessage(SearchEventsTopic, []byte("x"), "", nil)
	assert.Nil(t, km.Key)
	assert.Equal(t, "", kafkaMessageToMessage(km).Key)
}
