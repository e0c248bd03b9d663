package transport

import "fmt"

// Registry keeps the configured backends by name.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[string]*Client{}}
}

// Register adds or replaces a backend client.
func (r *Registry) Register(c *Client) {
	if r.clients == nil {
		r.clients = map[string]*Client{}
	}
	r.clients[c.Name()] = c
}

// Resolve returns a backend by name or an error if it is absent.
func (r *Registry) Resolve(name string) (*Client, error) {
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("backend %s is not registered", name)
}
