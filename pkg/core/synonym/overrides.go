package synonym

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"financial_dashboard/pkg/models"
)

// =============================================================================
// CLIENT OVERRIDES
// =============================================================================
//
// Resolution order: client override -> global index -> fuzzy.

// ClientOverride holds the field mappings a single client has confirmed.
type ClientOverride struct {
	ClientID    string                           `json:"client_id"`
	Mappings    map[string]models.CanonicalField `json:"mappings"` // normalized raw name -> canonical
	LastUpdated string                           `json:"last_updated"`
}

// OverrideRegistry stores per-client overrides, optionally persisted as JSON.
type OverrideRegistry struct {
	mu      sync.RWMutex
	clients map[string]*ClientOverride
	path    string
}

// NewOverrideRegistry creates a registry. With a non-empty path the file is
// loaded if it exists.
func NewOverrideRegistry(path string) (*OverrideRegistry, error) {
	r := &OverrideRegistry{clients: make(map[string]*ClientOverride), path: path}
	if path != "" {
		if err := r.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// For returns a copy of the mapping table for clientID, or nil.
func (r *OverrideRegistry) For(clientID string) map[string]models.CanonicalField {
	if r == nil || clientID == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	co := r.clients[clientID]
	if co == nil {
		return nil
	}
	out := make(map[string]models.CanonicalField, len(co.Mappings))
	for k, v := range co.Mappings {
		out[k] = v
	}
	return out
}

// Set records that rawName maps to canonical for clientID.
func (r *OverrideRegistry) Set(clientID, rawName string, canonical models.CanonicalField) error {
	if !models.IsCanonical(string(canonical)) {
		return fmt.Errorf("unknown canonical field %q", canonical)
	}
	key := Normalize(rawName)
	if key == "" {
		return fmt.Errorf("empty field name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	co := r.clients[clientID]
	if co == nil {
		co = &ClientOverride{ClientID: clientID, Mappings: make(map[string]models.CanonicalField)}
		r.clients[clientID] = co
	}
	co.Mappings[key] = canonical
	co.LastUpdated = time.Now().UTC().Format("2006-01-02")
	return nil
}

// Remove deletes one mapping.
func (r *OverrideRegistry) Remove(clientID, rawName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if co := r.clients[clientID]; co != nil {
		delete(co.Mappings, Normalize(rawName))
	}
}

// Clients lists the client IDs with overrides.
func (r *OverrideRegistry) Clients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.clients))
	for id := range r.clients {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SaveToFile writes every override to path (or the registry path when empty).
func (r *OverrideRegistry) SaveToFile(path string) error {
	if path == "" {
		path = r.path
	}
	if path == "" {
		return nil
	}

	r.mu.RLock()
	list := make([]*ClientOverride, 0, len(r.clients))
	for _, id := range r.clientIDsLocked() {
		list = append(list, r.clients[id])
	}
	data, err := json.MarshalIndent(struct {
		Clients []*ClientOverride `json:"clients"`
	}{list}, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write overrides %s: %w", path, err)
	}
	return nil
}

// LoadFromFile merges overrides from path. A missing file is not an error.
func (r *OverrideRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read overrides %s: %w", path, err)
	}

	var doc struct {
		Clients []*ClientOverride `json:"clients"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse overrides %s: %w", path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, co := range doc.Clients {
		if co == nil || co.ClientID == "" {
			continue
		}
		if co.Mappings == nil {
			co.Mappings = make(map[string]models.CanonicalField)
		}
		r.clients[co.ClientID] = co
	}
	return nil
}

func (r *OverrideRegistry) clientIDsLocked() []string {
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
