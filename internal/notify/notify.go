// Package notify publishes event change notifications.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"daybook/internal/model"
)

// Routing keys for published changes.
const (
	EventCreated = "event.created"
	EventUpdated = "event.updated"
	EventDeleted = "event.deleted"
)

// DefaultExchange is the topic exchange change messages go to.
const DefaultExchange = "daybook"

// Change is the message body.
type Change struct {
	Username string      `json:"username"`
	Event    model.Event `json:"event"`
}

// Publisher sends a change under a routing key.
type Publisher interface {
	Publish(key string, c Change) error
}

// Nop drops every message.
type Nop struct{}

func (Nop) Publish(string, Change) error { return nil }

// Producer publishes JSON messages to a RabbitMQ topic exchange.
type Producer struct {
	// Rabbitmq DSN
	connStr  string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	// opened is set by a successful Open and cleared by Close.
	opened bool
}

func NewProducer(connStr string) *Producer {
	return &Producer{
		connStr:  connStr,
		exchange: DefaultExchange,
	}
}

// Open dials the broker and declares the exchange.
func (p *Producer) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connect()
}

// connect (re)establishes the connection and channel. p.mu must be held.
func (p *Producer) connect() (err error) {
	if p.connStr == "" {
		return fmt.Errorf("connection string required")
	}
	p.closeLocked()

	if p.conn, err = amqp.Dial(p.connStr); err != nil {
		p.conn = nil
		return err
	}
	if p.channel, err = p.conn.Channel(); err != nil {
		p.channel = nil
		p.closeLocked()
		return err
	}
	if err = p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		p.closeLocked()
		return err
	}
	p.opened = true
	return nil
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	p.opened = false
}

func (p *Producer) closeLocked() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Publish is safe for concurrent use; an amqp.Channel is not. A channel
// closed by the broker is reopened once before giving up.
func (p *Producer) Publish(key string, c Change) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opened {
		return fmt.Errorf("producer not open")
	}
	err = p.publishLocked(key, body)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	if err := p.connect(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return p.publishLocked(key, body)
}

func (p *Producer) publishLocked(key string, body []byte) error {
	if p.channel == nil {
		return amqp.ErrClosed
	}
	return p.channel.Publish(
		p.exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
}
