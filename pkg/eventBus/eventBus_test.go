package eventBus

import (
	"context"
	"math/big"
	"testing"

	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_EventBus(t *testing.T) {
	l, _ := zap.NewDevelopment()

	t.Run("Should deliver events to every subscriber", func(t *testing.T) {
		eb := NewEventBus(l)
		a := eventBusTypes.NewConsumer(context.Background(), 1)
		b := eventBusTypes.NewConsumer(context.Background(), 1)
		eb.Subscribe(a)
		eb.Subscribe(b)
		assert.NotEqual(t, a.Id, b.Id)

		eb.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_Deposited,
			Data: &eventBusTypes.DepositedData{User: "0xaa", Amount: big.NewInt(10), Cycle: 3},
		})

		for _, c := range []*eventBusTypes.Consumer{a, b} {
			evt := <-c.Channel
			assert.Equal(t, eventBusTypes.Event_Deposited, evt.Name)
			data := evt.Data.(*eventBusTypes.DepositedData)
			assert.Equal(t, "10", data.Amount.String())
			assert.Equal(t, uint64(3), data.Cycle)
		}
	})
	t.Run("Should not block when a consumer channel is full", func(t *testing.T) {
		eb := NewEventBus(l)
		c := eventBusTypes.NewConsumer(context.Background(), 1)
		eb.Subscribe(c)

		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_FeeClaimed})
		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_VersionUpgraded})

		assert.Len(t, c.Channel, 1)
		evt := <-c.Channel
		assert.Equal(t, eventBusTypes.Event_FeeClaimed, evt.Name)
	})
	t.Run("Should stop delivering after unsubscribe or cancellation", func(t *testing.T) {
		eb := NewEventBus(l)
		ctx, cancel := context.WithCancel(context.Background())
		cancelled := eventBusTypes.NewConsumer(ctx, 1)
		removed := eventBusTypes.NewConsumer(context.Background(), 1)
		eb.Subscribe(cancelled)
		eb.Subscribe(removed)

		cancel()
		eb.Unsubscribe(removed)
		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_Withdrawn})

		assert.Len(t, cancelled.Channel, 0)
		assert.Len(t, removed.Channel, 0)
	})
}
