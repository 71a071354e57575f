// Package memory contains an in-memory enrichment publisher for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher stores published notifications for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	failFn   func(payload string) error
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Subject string
	Payload string
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWhen makes Publish return the error produced by fn for matching payloads.
func (p *Publisher) FailWhen(fn func(payload string) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFn = fn
}

// Publish records the notification and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, subject, payload string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFn != nil {
		if err := p.failFn(payload); err != nil {
			return "", err
		}
	}
	p.messages = append(p.messages, PublishedMessage{Subject: subject, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// Payloads returns the recorded payloads in publish order.
func (p *Publisher) Payloads() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.Payload)
	}
	return out
}
