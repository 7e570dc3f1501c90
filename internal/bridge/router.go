package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/planbridge/internal/types"
)

// Handler processes one outbound event on the host side.
type Handler func(ctx context.Context, event types.OutboundEvent) error

// Router dispatches outbound panel events to handlers by event type.
type Router struct {
	mu       sync.RWMutex
	handlers map[types.OutboundType]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[types.OutboundType]Handler),
	}
}

// Register sets the handler for events of type t.
func (r *Router) Register(t types.OutboundType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = handler
}

// Dispatch decodes raw and calls the matching handler.
func (r *Router) Dispatch(ctx context.Context, raw []byte) error {
	event, err := DecodeOutbound(raw)
	if err != nil {
		return err
	}
	r.mu.RLock()
	handler, ok := r.handlers[event.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler for event type: %s", event.Type)
	}
	return handler(ctx, event)
}
