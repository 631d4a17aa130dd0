package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()

	typed := newTestHandler("order.routed")
	registry.Register(typed, "order.routed", "sync.completed")

	assert.Len(t, registry.GetHandlers("order.routed"), 1)
	assert.Len(t, registry.GetHandlers("sync.completed"), 1)
	assert.Empty(t, registry.GetHandlers("conflict.detected"))
}

func TestHandlerRegistry_WildcardReceivesEverything(t *testing.T) {
	registry := NewHandlerRegistry()

	wildcard := newTestHandler()
	typed := newTestHandler("order.routed")
	registry.Register(wildcard)
	registry.Register(typed, "order.routed")

	assert.Len(t, registry.GetHandlers("order.routed"), 2)
	assert.Len(t, registry.GetHandlers("never.seen"), 1)
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()

	typed := newTestHandler("order.routed")
	wildcard := newTestHandler()
	registry.Register(typed, "order.routed")
	registry.Register(wildcard)

	registry.Unregister(typed)
	registry.Unregister(wildcard)

	assert.Empty(t, registry.GetHandlers("order.routed"))
}
