// Package events pushes acquisition outcomes onto the message bus for
// whoever is watching the fleet. Publishing is fire-and-forget: an
// unreachable bus never fails an acquisition.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for acquisition outcomes.
const (
	SubjectAcquired = "snapscout.acquired"
	SubjectFailed   = "snapscout.failed"
)

// Event describes one finished acquisition.
type Event struct {
	EventID    string    `json:"event_id"`
	Address    string    `json:"address"`
	Success    bool      `json:"success"`
	Stage      string    `json:"stage,omitempty"`
	Source     string    `json:"source,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ev Event) error
}

// NATSPublisher publishes events with a bounded linear-backoff retry.
type NATSPublisher struct {
	conn       *nats.Conn
	maxRetries int

	// sleep is swappable in tests.
	sleep func(time.Duration)
}

func NewNATSPublisher(conn *nats.Conn, maxRetries int) *NATSPublisher {
	return &NATSPublisher{conn: conn, maxRetries: maxRetries, sleep: time.Sleep}
}

func (p *NATSPublisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := SubjectFailed
	if ev.Success {
		subject = SubjectAcquired
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	err = publishWithRetry(func() error {
		return p.conn.Publish(subject, data)
	}, p.maxRetries, sleep)
	if err != nil {
		return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
	}
	return nil
}

// publishWithRetry runs pub up to maxRetries+1 times with linear backoff
// before each retry: 100ms, 200ms, and so on. It never sleeps after the
// final attempt.
func publishWithRetry(pub func() error, maxRetries int, sleep func(time.Duration)) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = pub()
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}
}

// Nop is the publisher used when no bus is configured.
type Nop struct{}

func (Nop) Publish(Event) error { return nil }
