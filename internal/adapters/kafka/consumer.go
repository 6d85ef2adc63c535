// Package kafka feeds engagement events from the notification subsystem
// into the scoring engine.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/IBM/sarama"

	"dealscore/internal/domain"
	"dealscore/internal/ports"
)

// Consumer wraps a Sarama consumer group reading the engagement topic.
type Consumer struct {
	client sarama.ConsumerGroup
	topic  string
	engage ports.Engagement
	ready  chan bool

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("kafka consumer closed")

func NewConsumer(brokers []string, groupID, topic string, engage ports.Engagement) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Version = sarama.V2_8_0_0

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}
	return newConsumer(client, topic, engage), nil
}

func newConsumer(client sarama.ConsumerGroup, topic string, engage ports.Engagement) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client: client,
		topic:  topic,
		engage: engage,
		ready:  make(chan bool),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start consumes in the background and returns once the first session is
// set up, or when ctx ends first. Cancelling ctx or calling Close stops it.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, c.cancel)
	ctx = c.ctx
	ready := c.ready

	go func() {
		defer stop()
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{consumer: c, ready: c.ready}
			if err := c.client.Consume(ctx, []string{c.topic}, handler); err != nil {
				log.Printf("kafka: consume error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
			c.ready = make(chan bool)
		}
	}()

	select {
	case <-ready:
		log.Printf("kafka: consuming %s", c.topic)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops consuming and releases the group.
func (c *Consumer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// errBadEvent marks payloads that will never succeed and are skipped.
var errBadEvent = errors.New("bad engagement event")

// handleMessage decodes one payload and dispatches it.
func handleMessage(ctx context.Context, engage ports.Engagement, value []byte) error {
	var ev EngagementEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("%w: %v", errBadEvent, err)
	}
	switch ev.EventType {
	case EventEmailOpened:
		return engage.EmailOpened(ctx, ev.InviteID, ev.OccurredAt)
	case EventProposalViewed:
		return engage.ProposalViewed(ctx, ev.InviteID, ev.OccurredAt)
	case EventCommunicationLogged:
		return engage.LogCommunication(ctx, &domain.Communication{
			RecommendationID: ev.RecommendationID,
			Direction:        domain.Direction(ev.Direction),
			Channel:          ev.Channel,
			ContactAt:        ev.OccurredAt,
			Source:           ev.Source,
		})
	default:
		return fmt.Errorf("%w: unknown event_type %q", errBadEvent, ev.EventType)
	}
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			// Events are marked either way; retries belong to the publisher.
			if err := handleMessage(session.Context(), h.consumer.engage, message.Value); err != nil {
				log.Printf("kafka: %s/%d@%d: %v", message.Topic, message.Partition, message.Offset, err)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
