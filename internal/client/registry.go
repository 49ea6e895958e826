package client

import (
	"log/slog"
	"sync"

	"github.com/rafaeljc/heimdall-sdk/internal/logger"
)

// Registry hands out one Client per SDK key. Asking twice for the same key
// returns the existing client and ignores the new options.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:  logger.OrDefault(log),
		clients: make(map[string]*Client),
	}
}

// Get returns the client for opts.SDKKey, creating it on first use.
func (r *Registry) Get(opts Options) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.clients[opts.SDKKey]; ok {
		r.logger.Warn("there is an existing client instance for the specified SDK key; no new client instance will be created and the specified options are ignored",
			slog.String("sdk_key", maskKey(opts.SDKKey)),
		)
		return c, nil
	}

	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	key := opts.SDKKey
	c.onClose = func() { r.remove(key, c) }
	r.clients[key] = c
	return c, nil
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close closes every client. Later Get calls fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (r *Registry) remove(key string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[key] == c {
		delete(r.clients, key)
	}
}

// maskKey keeps the last characters of a key for log correlation.
func maskKey(key string) string {
	const visible = 6
	if len(key) <= visible {
		return "***"
	}
	return "***" + key[len(key)-visible:]
}
