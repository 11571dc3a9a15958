package metrics

import (
	"bytes"
	"encoding/json"

	"carteira/internal/core"
)

// CategoryAmount is one entry of a CategoryTotals mapping.
type CategoryAmount struct {
	Name   string     `json:"name"`
	Amount core.Money `json:"amount"`
}

// CategoryTotals maps category to summed amount and iterates in insertion
// order, so ties resolve to the first category seen.
type CategoryTotals struct {
	index   map[string]int
	entries []CategoryAmount
}

// NewCategoryTotals returns an empty mapping.
func NewCategoryTotals() *CategoryTotals {
	return &CategoryTotals{index: make(map[string]int)}
}

// Add accumulates amount under category, appending new categories at the end.
func (c *CategoryTotals) Add(category string, amount core.Money) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[category]; ok {
		c.entries[i].Amount = c.entries[i].Amount.Add(amount)
		return
	}
	c.index[category] = len(c.entries)
	c.entries = append(c.entries, CategoryAmount{Name: category, Amount: amount})
}

func (c *CategoryTotals) Get(category string) (core.Money, bool) {
	if c == nil {
		return core.Money{}, false
	}
	i, ok := c.index[category]
	if !ok {
		return core.Money{}, false
	}
	return c.entries[i].Amount, true
}

func (c *CategoryTotals) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Keys returns categories in insertion order.
func (c *CategoryTotals) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Name
	}
	return keys
}

// Entries returns a copy of the entries in insertion order.
func (c *CategoryTotals) Entries() []CategoryAmount {
	if c == nil {
		return nil
	}
	return append([]CategoryAmount(nil), c.entries...)
}

func (c *CategoryTotals) Sum() core.Money {
	var total core.Money
	if c == nil {
		return total
	}
	for _, e := range c.entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Max returns the largest entry. A later entry only replaces the current
// maximum when strictly greater.
func (c *CategoryTotals) Max() (CategoryAmount, bool) {
	if c.Len() == 0 {
		return CategoryAmount{}, false
	}
	top := c.entries[0]
	for _, e := range c.entries[1:] {
		if e.Amount.Cents > top.Amount.Cents {
			top = e
		}
	}
	return top, true
}

// MarshalJSON writes a JSON object whose keys keep insertion order.
func (c *CategoryTotals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if c != nil {
		for i, e := range c.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(e.Name)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.WriteString(e.Amount.String())
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
