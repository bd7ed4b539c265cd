// Package exchange handles communication with partner surveillance
// instances: the partner directory, bearer tokens for receiver
// authentication, and the signed-envelope HTTP client.
package exchange

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Partner describes one remote instance this server can exchange data with.
type Partner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	// Secret is the shared hex key for envelope encryption, payload
	// signing and bearer tokens with this partner.
	Secret string `json:"secret"`
}

// Directory holds the known partners, loaded from a JSON file at startup.
type Directory struct {
	mu       sync.RWMutex
	partners map[string]*Partner
}

func NewDirectory() *Directory {
	return &Directory{partners: make(map[string]*Partner)}
}

// LoadDirectory reads the partners file. The file is a JSON array of
// Partner objects.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partners file: %w", err)
	}
	var list []*Partner
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse partners file: %w", err)
	}
	d := NewDirectory()
	for _, p := range list {
		if err := d.Add(p); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Directory) Add(p *Partner) error {
	if p.ID == "" || p.BaseURL == "" || p.Secret == "" {
		return fmt.Errorf("partner %q: id, base_url and secret are required", p.ID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partners[p.ID] = p
	return nil
}

// Get returns the partner with the given instance id.
func (d *Directory) Get(id string) (*Partner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.partners[id]
	if !ok {
		return nil, fmt.Errorf("unknown partner instance %q", id)
	}
	return p, nil
}

// List returns all partners ordered by id.
func (d *Directory) List() []*Partner {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Partner, 0, len(d.partners))
	for _, p := range d.partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
