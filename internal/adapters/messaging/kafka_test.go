package messaging

import (
	"testing"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/require"
)

func TestRedeliveriesAreBounded(t *testing.T) {
	r := newRedeliveries(2)

	require.True(t, r.failed("0@5"))
	require.True(t, r.failed("0@5"))
	require.False(t, r.failed("0@5"))

	// после пропуска счетчик сбрасывается
	require.True(t, r.failed("0@5"))
}

func TestRedeliveriesResetOnSuccess(t *testing.T) {
	r := newRedeliveries(1)

	require.True(t, r.failed("1@7"))
	r.done("1@7")
	require.True(t, r.failed("1@7"))
	require.True(t, r.failed("1@8"))
	require.False(t, r.failed("1@7"))
}

func TestRedeliveriesDisabled(t *testing.T) {
	require.False(t, newRedeliveries(0).failed("0@1"))
}

func TestOffsetKey(t *testing.T) {
	topic := DefaultCommandTopic
	tp := kafka.TopicPartition{Topic: &topic, Partition: 3, Offset: 42}
	require.Equal(t, "3@42", offsetKey(tp))
}
