package unwind

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/btree"
)

// Context is the mutable key/value store shared by every action and
// compensation of one saga run. Step outputs are published here under the
// step's name; actions may also write arbitrary keys to thread data (created
// resource IDs, tokens) to later steps.
//
// The orchestrator invokes exactly one action or compensation at a time, so
// the Context needs no locking of its own during a run. Its lifetime is one
// Run call: create it, pass it in, inspect it through the Result.
type Context struct {
	values *btree.Map[string, any]
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{values: btree.NewMap[string, any](8)}
}

// Set stores a value under key, replacing any previous value.
func (c *Context) Set(key string, value any) {
	c.values.Set(key, value)
}

// Get retrieves the value stored under key.
// Returns the value and true if found, or nil and false if not found.
func (c *Context) Get(key string) (any, bool) {
	return c.values.Get(key)
}

// Delete removes the value stored under key, if any.
func (c *Context) Delete(key string) {
	c.values.Delete(key)
}

// Len returns the number of keys in the Context.
func (c *Context) Len() int {
	return c.values.Len()
}

// Keys returns all keys in ascending order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, c.values.Len())
	c.values.Scan(func(key string, _ any) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Snapshot returns a plain-map copy of the Context's current values. The map
// is owned by the caller; mutating it does not affect the Context.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, c.values.Len())
	c.values.Scan(func(key string, value any) bool {
		out[key] = value
		return true
	})
	return out
}

// MarshalJSON implements json.Marshaler so that run records can archive the
// final context state.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}

// LookupTyped retrieves the value stored under key with a type assertion.
// Returns the typed value and true if found and the type matches, or the
// zero value and false otherwise. If the value was restored from JSON (as
// json.RawMessage), it will be unmarshaled into the requested type.
func LookupTyped[T any](c *Context, key string) (T, bool) {
	var zero T
	value, found := c.Get(key)
	if !found {
		return zero, false
	}

	if typed, ok := value.(T); ok {
		return typed, true
	}

	if raw, ok := value.(json.RawMessage); ok {
		var result T
		if err := json.Unmarshal(raw, &result); err == nil {
			return result, true
		}
	}

	return zero, false
}

// MustLookup retrieves the value stored under key, or returns an error
// naming the missing key. Useful inside compensations that require an
// earlier step's output.
func MustLookup[T any](c *Context, key string) (T, error) {
	value, ok := LookupTyped[T](c, key)
	if !ok {
		var zero T
		return zero, fmt.Errorf("no value of type %T found for key %q", zero, key)
	}
	return value, nil
}
