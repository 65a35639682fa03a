package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Collector gathers errors keyed by the unit that failed (a locale, an
// include identifier). A batch keeps running after one unit fails; the
// collector is how its failures surface afterwards.
type Collector struct {
	errors map[string]error
	order  []string
	mutex  sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make(map[string]error),
	}
}

// Add records err for key. A nil error is ignored; a second error for the
// same key replaces the first.
func (c *Collector) Add(key string, err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, exists := c.errors[key]; !exists {
		c.order = append(c.order, key)
	}
	c.errors[key] = err
}

// Get returns the error recorded for key.
func (c *Collector) Get(key string) (error, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	err, ok := c.errors[key]
	return err, ok
}

// Keys returns the failed keys in the order they were first recorded.
func (c *Collector) Keys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors) > 0
}

// Len returns the number of failed keys.
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors)
}

// Err returns nil when nothing failed, otherwise a single error summarizing
// every recorded failure.
func (c *Collector) Err() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if len(c.errors) == 0 {
		return nil
	}
	return &BatchError{errors: c.snapshot()}
}

func (c *Collector) snapshot() map[string]error {
	out := make(map[string]error, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

// BatchError aggregates the per-unit failures of a batch.
type BatchError struct {
	errors map[string]error
}

// Error implements the error interface.
func (b *BatchError) Error() string {
	keys := make([]string, 0, len(b.errors))
	for k := range b.errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, b.errors[k]))
	}
	return fmt.Sprintf("%d failed: %s", len(keys), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (b *BatchError) Unwrap() []error {
	out := make([]error, 0, len(b.errors))
	for _, err := range b.errors {
		out = append(out, err)
	}
	return out
}

// Errors returns the failures keyed by unit.
func (b *BatchError) Errors() map[string]error {
	out := make(map[string]error, len(b.errors))
	for k, v := range b.errors {
		out[k] = v
	}
	return out
}
