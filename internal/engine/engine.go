package engine

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/a-essam23/go-place/pkg/config"
	"github.com/a-essam23/go-place/pkg/pipeline"
)

/*
* The central registry for topic handlers. Each inbound topic routes to
* exactly one handler.
 */
type Registry struct {
	logger    *slog.Logger
	handlers  map[string]pipeline.HandlerFunc
	handlerMu sync.RWMutex
}

type RegisterCoreOptions struct {
	Topics config.TopicsConfig
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]pipeline.HandlerFunc),
		logger:   logger.With(slog.String("component", "engine")),
	}
}

func (e *Registry) RegisterHandler(topic string, fn pipeline.HandlerFunc) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	if _, exists := e.handlers[topic]; exists {
		panic("handler already registered for topic: " + topic)
	}
	e.handlers[topic] = fn
}

func (e *Registry) GetHandlerFunc(topic string) (pipeline.HandlerFunc, bool) {
	e.handlerMu.RLock()
	defer e.handlerMu.RUnlock()
	fn, ok := e.handlers[topic]
	return fn, ok
}

// Topics returns every registered topic in lexical order.
func (e *Registry) Topics() []string {
	e.handlerMu.RLock()
	defer e.handlerMu.RUnlock()
	keys := make([]string, 0, len(e.handlers))
	for k := range e.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
