package presence

import (
	"errors"
	"sync"

	"social_chat_service/internal/chat/domain"
)

var (
	// ErrChannelFull send buffer full, the push is dropped
	ErrChannelFull = errors.New("channel send buffer full")
	// ErrChannelClosed channel already disconnected
	ErrChannelClosed = errors.New("channel closed")
)

// Channel a connected realtime transport. Push must not block.
type Channel interface {
	ID() string
	Push(resp domain.WSResponse) error
	// Close flush what was already pushed, then disconnect. Later pushes fail with ErrChannelClosed.
	Close()
}

// Router maps a user id to at most one channel
type Router interface {
	// Join register or overwrite userID -> ch, return the replaced channel if any
	Join(userID string, ch Channel) Channel
	// Leave remove the mapping only if ch is still the registered channel
	Leave(ch Channel) (string, bool)
	// Resolve current channel of userID
	Resolve(userID string) (Channel, bool)
	// Count number of registered users
	Count() int
}

// LocalRouter process local Router
type LocalRouter struct {
	mu        sync.RWMutex
	byUser    map[string]Channel
	byChannel map[string]string
}

// NewLocalRouter create LocalRouter
func NewLocalRouter() *LocalRouter {
	return &LocalRouter{
		byUser:    make(map[string]Channel),
		byChannel: make(map[string]string),
	}
}

// Join last join wins
func (r *LocalRouter) Join(userID string, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 同一條 channel 換身份時, 先清掉舊的 user 對應
	if prevUser, ok := r.byChannel[ch.ID()]; ok && prevUser != userID {
		if cur, ok := r.byUser[prevUser]; ok && cur.ID() == ch.ID() {
			delete(r.byUser, prevUser)
		}
	}

	old, had := r.byUser[userID]
	r.byUser[userID] = ch
	r.byChannel[ch.ID()] = userID

	if !had || old.ID() == ch.ID() {
		return nil
	}
	// 被取代的 channel 之後 Leave 會是 no-op
	delete(r.byChannel, old.ID())
	return old
}

// Leave stale or unknown channel is a no-op
func (r *LocalRouter) Leave(ch Channel) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byChannel[ch.ID()]
	if !ok {
		return "", false
	}
	delete(r.byChannel, ch.ID())

	cur, ok := r.byUser[userID]
	if !ok || cur.ID() != ch.ID() {
		return "", false
	}
	delete(r.byUser, userID)
	return userID, true
}

// Resolve O(1) lookup
func (r *LocalRouter) Resolve(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byUser[userID]
	return ch, ok
}

// Count registered users
func (r *LocalRouter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
