// Package notify coordinates update notification between a page context and
// the background cache controller.
//
// Cross-context calls go over a typed request/response bus with correlation
// IDs instead of ad hoc payloads. The page side runs a Prompt state machine
// that surfaces a non-blocking update prompt when a successor version parks
// waiting for activation, and performs exactly one reload when control
// transfers.
package notify

import (
	"context"
	"sync"
)

// MessageType identifies a cross-context message.
type MessageType int

const (
	// MessageSkipWaiting tells the waiting version to activate now.
	MessageSkipWaiting MessageType = iota

	// MessageCacheStatusRequest asks for per-generation entry counts.
	MessageCacheStatusRequest

	// MessageCacheStatusReply carries the entry counts back.
	MessageCacheStatusReply

	// MessageAck acknowledges a signal with no payload.
	MessageAck
)

// Message is one typed bus message. ID correlates a reply to its request.
type Message struct {
	Type   MessageType
	ID     uint64
	Counts map[string]int
	Err    string
}

// Bus is the typed request/response channel between page and worker
// contexts. Safe for concurrent use from both sides.
type Bus struct {
	requests chan Message

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
}

// NewBus creates a bus.
func NewBus() *Bus {
	return &Bus{
		requests: make(chan Message, 16),
		pending:  make(map[uint64]chan Message),
	}
}

// Request sends a message and waits for its correlated reply.
func (b *Bus) Request(ctx context.Context, msg Message) (Message, error) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	reply := make(chan Message, 1)
	b.pending[id] = reply
	b.mu.Unlock()

	msg.ID = id

	select {
	case b.requests <- msg:
	case <-ctx.Done():
		b.drop(id)
		return Message{}, ctx.Err()
	}

	select {
	case m := <-reply:
		return m, nil
	case <-ctx.Done():
		b.drop(id)
		return Message{}, ctx.Err()
	}
}

// Requests is the worker-side receive channel.
func (b *Bus) Requests() <-chan Message {
	return b.requests
}

// Reply delivers a response to the requester identified by msg.ID.
// Replies to abandoned requests are discarded.
func (b *Bus) Reply(msg Message) {
	b.mu.Lock()
	reply := b.pending[msg.ID]
	delete(b.pending, msg.ID)
	b.mu.Unlock()

	if reply != nil {
		reply <- msg
	}
}

func (b *Bus) drop(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// CacheStatus queries per-generation entry counts over the bus.
// Diagnostics only.
func CacheStatus(ctx context.Context, bus *Bus) (map[string]int, error) {
	reply, err := bus.Request(ctx, Message{Type: MessageCacheStatusRequest})
	if err != nil {
		return nil, err
	}
	return reply.Counts, nil
}
