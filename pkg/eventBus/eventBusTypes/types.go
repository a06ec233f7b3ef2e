// Package eventBusTypes defines the events the ledger publishes and the
// consumer types used to receive them.
package eventBusTypes

import (
	"context"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// EventName identifies the kind of event.
type EventName string

func (en *EventName) String() string {
	return string(*en)
}

// Ledger events. The names and the json field names of their payloads are stable.
var (
	Event_Deposited          EventName = "Deposited"
	Event_Withdrawn          EventName = "Withdrawn"
	Event_RewardsClaimed     EventName = "RewardsClaimed"
	Event_FeeClaimed         EventName = "FeeClaimed"
	Event_RangeRewardUpdated EventName = "RangeRewardUpdated"
	Event_VersionUpgraded    EventName = "VersionUpgraded"
)

// Event is a message published on the bus. Data holds one of the *Data
// payload types below, matching Name.
type Event struct {
	Name EventName
	Data any
}

type DepositedData struct {
	User   string   `json:"user"`
	Amount *big.Int `json:"amount"`
	Cycle  uint64   `json:"cycle"`
}

type WithdrawnData struct {
	User   string   `json:"user"`
	Amount *big.Int `json:"amount"`
}

// RewardsClaimedData carries the net amount paid to the user.
type RewardsClaimedData struct {
	User   string   `json:"user"`
	Amount *big.Int `json:"amount"`
}

type FeeClaimedData struct {
	Amount *big.Int `json:"amount"`
}

type RangeRewardUpdatedData struct {
	TierKey uint64   `json:"tierKey"`
	Rate    *big.Int `json:"rate"`
}

type VersionUpgradedData struct {
	Version string `json:"version"`
}

// ConsumerId uniquely identifies an event consumer.
type ConsumerId string

// Consumer is a subscriber to the event bus. Events are delivered on Channel;
// Context is cancelled when the consumer should stop reading.
type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

// NewConsumer returns a consumer with a random id and a channel of the given size.
func NewConsumer(ctx context.Context, bufferSize int) *Consumer {
	return &Consumer{
		Id:      ConsumerId(uuid.NewString()),
		Context: ctx,
		Channel: make(chan *Event, bufferSize),
	}
}

// ConsumerList is a thread-safe collection of consumers.
type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

// Remove removes the consumer with the same id, if present.
func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a snapshot of the current consumers.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*Consumer, len(cl.consumers))
	copy(out, cl.consumers)
	return out
}

// IEventBus is the publishing side used by the ledger.
type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}
