// internal/models/codec.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValue is returned when a string does not name any member of an
// enumerated parameter type.
var ErrUnknownValue = errors.New("unknown value")

// Encodable is implemented by every enumerated request parameter (edition,
// region, IMT, site class, source type). All of them share one JSON shape.
type Encodable interface {
	Value() string
	Display() string
	DisplayOrder() int
}

type encodedEnum struct {
	ID           int    `json:"id"`
	Value        string `json:"value"`
	Display      string `json:"display"`
	DisplayOrder int    `json:"displayorder"`
}

func encodeJSON(e Encodable) ([]byte, error) {
	return json.Marshal(encodedEnum{
		ID:           e.DisplayOrder(),
		Value:        e.Value(),
		Display:      e.Display(),
		DisplayOrder: e.DisplayOrder(),
	})
}

// decodeJSON accepts either the object form produced by encodeJSON or a bare
// string value.
func decodeJSON(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, nil
	}
	var obj encodedEnum
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return obj.Value, nil
}

type codecEntry struct {
	value   string
	display string
}

// codec is the string table for one enumerated type. Members are the
// consecutive integers starting at zero, in declaration order.
type codec[E ~int] struct {
	kind    string
	entries []codecEntry
	byValue map[string]E
}

func newCodec[E ~int](kind string, entries ...codecEntry) *codec[E] {
	c := &codec[E]{
		kind:    kind,
		entries: entries,
		byValue: make(map[string]E, len(entries)),
	}
	for i, e := range entries {
		c.byValue[strings.ToUpper(e.value)] = E(i)
	}
	return c
}

func (c *codec[E]) valid(e E) bool {
	return int(e) >= 0 && int(e) < len(c.entries)
}

func (c *codec[E]) value(e E) string {
	if !c.valid(e) {
		return fmt.Sprintf("%s(%d)", c.kind, int(e))
	}
	return c.entries[e].value
}

func (c *codec[E]) display(e E) string {
	if !c.valid(e) {
		return c.value(e)
	}
	return c.entries[e].display
}

func (c *codec[E]) parse(s string) (E, error) {
	e, ok := c.byValue[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", ErrUnknownValue, c.kind, s)
	}
	return e, nil
}

func (c *codec[E]) values() []E {
	out := make([]E, len(c.entries))
	for i := range c.entries {
		out[i] = E(i)
	}
	return out
}
