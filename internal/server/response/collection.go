package response

import (
	"bytes"
	"encoding/json"
)

// Collection is a JSON object keyed by entity id that keeps insertion
// order, so sorted collections serialize in sort order.
type Collection struct {
	keys   []string
	values map[string]any
}

// NewCollection creates a collection with room for n entries.
func NewCollection(n int) *Collection {
	return &Collection{keys: make([]string, 0, n), values: make(map[string]any, n)}
}

// Add appends an entry. A repeated id replaces the earlier value in place.
func (c *Collection) Add(id string, v any) {
	if _, ok := c.values[id]; !ok {
		c.keys = append(c.keys, id)
	}
	c.values[id] = v
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.keys)
}

// Keys returns the ids in order.
func (c *Collection) Keys() []string {
	return c.keys
}

// MarshalJSON writes the entries in insertion order.
func (c *Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(c.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
