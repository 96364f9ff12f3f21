package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDetached is returned by Publish once the broker connection is gone.
var ErrDetached = errors.New("rabbitmq: publisher detached from broker")

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends JSON events to a durable topic exchange. Without a reachable broker at
// startup it runs detached: events are logged and dropped.
type Publisher struct {
	exchange string
	appID    string

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     channel
	reason string
	lost   bool
}

// New dials url and declares exchange. Any failure yields a detached publisher.
func New(url, exchange, appID string) *Publisher {
	p := &Publisher{exchange: exchange, appID: appID}
	if url == "" {
		p.reason = "empty amqp url"
		return p
	}
	conn, ch, err := dial(url, exchange)
	if err != nil {
		p.reason = err.Error()
		return p
	}
	p.conn, p.ch = conn, ch
	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	log.Printf("rabbitmq connected exchange=%s", exchange)
	return p
}

func dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

// watch detaches the publisher when the broker closes the connection.
func (p *Publisher) watch(closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	if !ok || amqpErr == nil {
		return
	}
	log.Printf("rabbitmq connection lost: code=%d reason=%s", amqpErr.Code, amqpErr.Reason)
	p.mu.Lock()
	p.ch, p.conn = nil, nil
	p.lost = true
	p.reason = "connection lost: " + amqpErr.Reason
	p.mu.Unlock()
}

// Mode is "amqp" while connected and "noop" otherwise.
func (p *Publisher) Mode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return "amqp"
	}
	return "noop"
}

// Reason explains why the publisher is detached.
func (p *Publisher) Reason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// Publish marshals event and sends it under routingKey. A publisher that never connected
// logs and succeeds; one that lost its connection returns ErrDetached.
func (p *Publisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// the broker may block a publish under flow control; the lock only guards the handle
	p.mu.Lock()
	ch, lost := p.ch, p.lost
	p.mu.Unlock()
	if ch == nil {
		log.Printf("rabbitmq noop publish routing_key=%s request_id=%s bytes=%d", routingKey, headers["x-request-id"], len(body))
		if lost {
			return ErrDetached
		}
		return nil
	}

	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		AppId:        p.appID,
		Headers:      Table(headers),
		Body:         body,
	})
	if err != nil {
		log.Printf("rabbitmq publish failed: routing_key=%s err=%v", routingKey, err)
	}
	return err
}

// Table converts string headers into AMQP headers; nil when there are none.
func Table(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	return table
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
