package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
	"github.com/stretchr/testify/require"
)

func TestNewCommandRoundTrip(t *testing.T) {
	body, err := NewCommand(CommandRebuildLookup, RebuildPayload{Clear: true}, "cron")
	require.NoError(t, err)

	var cmd Command
	require.NoError(t, json.Unmarshal(body, &cmd))
	require.Equal(t, CommandRebuildLookup, cmd.CommandType)
	require.Equal(t, "cron", cmd.TriggeredBy)

	var p RebuildPayload
	require.NoError(t, json.Unmarshal(cmd.Payload, &p))
	require.True(t, p.Clear)
}

func TestPublishSyncResultCarriesFailure(t *testing.T) {
	bus := NewMemoryBus(logger.NewNopLogger())
	pub := NewEventPublisher(bus, "events")

	res := &models.SyncResult{SKU: "S1"}
	res.Fail(models.StatusFailed, errors.New("remote down"))
	require.NoError(t, pub.PublishSyncResult(context.Background(), "update", res))

	sent := bus.Sent("events")
	require.Len(t, sent, 1)
	require.Equal(t, "S1", sent[0].Key)

	var ev SyncCompleted
	require.NoError(t, json.Unmarshal(sent[0].Value, &ev))
	require.Equal(t, "update", ev.Op)
	require.Equal(t, models.StatusFailed, ev.Status)
	require.Equal(t, "remote down", ev.Error)
	require.Nil(t, ev.ProductID)
	require.False(t, ev.OccurredAt.IsZero())
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(logger.NewNopLogger())
	ctx := context.Background()

	var got int
	unsubscribe, err := bus.Subscribe(ctx, "t", func(ctx context.Context, msg *interfaces.Message) error {
		got++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "t", []byte("1")))
	require.NoError(t, unsubscribe())
	require.NoError(t, bus.Publish(ctx, "t", []byte("2")))

	require.Equal(t, 1, got)
	require.Len(t, bus.Sent("t"), 2)
}
