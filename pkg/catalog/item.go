// Package catalog defines the item and page types returned by the remote
// catalog API.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultItemsKey is the envelope field holding the item array.
const DefaultItemsKey = "products"

// ErrMalformedPage is returned when a response body is not a valid page envelope.
var ErrMalformedPage = errors.New("malformed catalog page")

// Item is a single catalog entry. Items are immutable once fetched.
type Item struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Thumbnail string  `json:"thumbnail"`
}

// Page is one response from the browse or search endpoint.
type Page struct {
	Items []Item `json:"items"`

	// Total, Skip and Limit echo the server's view of the page.
	// They are zero when the server omits them.
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// Exhausted reports whether this page reached the end of the catalog.
// An empty page always ends the catalog.
func (p *Page) Exhausted() bool {
	if len(p.Items) == 0 {
		return true
	}
	return p.Total > 0 && p.Skip+len(p.Items) >= p.Total
}

// DecodePage parses a page envelope. The item array is read from itemsKey,
// falling back to "items" when that key is absent.
func DecodePage(data []byte, itemsKey string) (*Page, error) {
	if itemsKey == "" {
		itemsKey = DefaultItemsKey
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	itemsRaw, ok := raw[itemsKey]
	if !ok {
		itemsRaw, ok = raw["items"]
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing %q array", ErrMalformedPage, itemsKey)
	}

	page := &Page{}
	if err := json.Unmarshal(itemsRaw, &page.Items); err != nil {
		return nil, fmt.Errorf("%w: items: %v", ErrMalformedPage, err)
	}
	if page.Items == nil {
		page.Items = []Item{}
	}

	for field, dst := range map[string]*int{"total": &page.Total, "skip": &page.Skip, "limit": &page.Limit} {
		v, ok := raw[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPage, field, err)
		}
	}

	return page, nil
}
