// Package mq_client publishes JSON messages on the NATS bus.
package mq_client

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
)

const EventsPrefix = "carbonex.events"

// Publisher is the part of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Client struct {
	conn Publisher
}

func New(conn Publisher) *Client {
	return &Client{conn: conn}
}

// Enqueue publishes payload as JSON on subject.
func (c *Client) Enqueue(subject string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return c.conn.Publish(subject, body)
}

// EnqueueEvent publishes on carbonex.events.<kind>.<id>.<event>, e.g.
// carbonex.events.private.42.order for a member's order update.
func (c *Client) EnqueueEvent(kind string, id string, event string, payload interface{}) error {
	return c.Enqueue(EventsPrefix+"."+kind+"."+id+"."+event, payload)
}

// Message is one publication captured by Recorder.
type Message struct {
	Subject string
	Data    []byte
}

// Recorder is an in-memory Publisher for tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

func (r *Recorder) Publish(subject string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Messages = append(r.Messages, Message{Subject: subject, Data: data})
	return nil
}

func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		subjects = append(subjects, m.Subject)
	}

	return subjects
}

var _ Publisher = (*nats.Conn)(nil)
