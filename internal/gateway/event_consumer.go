package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/wuzzlegames/wuzzle/internal/events"
)

// ConsumerConfig holds JetStream consumer settings for the gateway.
type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "ROOM_EVENTS",
		ConsumerName:  "room-gateway",
		SubjectFilter: "rooms.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer bridges the JetStream room-event stream to WebSocket
// clients via the connection manager.
type EventConsumer struct {
	manager  *ConnectionManager
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   ConsumerConfig
}

func NewEventConsumer(manager *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{manager: manager, nc: nc, js: js, config: config}
	if err := ec.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Room gateway WebSocket consumer",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	ec.consumer = consumer
	return nil
}

// Start consumes events until ctx is cancelled.
func (ec *EventConsumer) Start(ctx context.Context) error {
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		ec.handleMessage(msg)
	})
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	log.Info().
		Str("stream", ec.config.StreamName).
		Str("consumer", ec.config.ConsumerName).
		Msg("event consumer started")

	<-ctx.Done()
	consumeCtx.Stop()
	return nil
}

func (ec *EventConsumer) handleMessage(msg jetstream.Msg) {
	var event events.RoomEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("undecodable room event, dropping")
		_ = msg.Ack() // retrying cannot fix a bad payload
		return
	}

	ec.manager.Broadcast(event)

	if err := msg.Ack(); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to ack event")
	}
}

func (ec *EventConsumer) Close() {
	if ec.nc != nil {
		ec.nc.Close()
	}
}
