// Package baserow reads rows from the Baserow list-rows API.
package baserow

import (
	"bytes"
	"encoding/json"
)

// Row is one table row keyed by field name. Numbers are kept as json.Number
// so identifiers survive the trip to the webhook unchanged.
type Row map[string]interface{}

// ID returns the row identifier, or nil when the row has none.
func (r Row) ID() interface{} {
	return r["id"]
}

// Page is one response of the list-rows endpoint.
type Page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Row   `json:"results"`
}

// NextURL returns the cursor for the following page, empty on the last one.
func (p *Page) NextURL() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}

// DecodePage parses a list-rows response body.
func DecodePage(body []byte) (*Page, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var page Page
	if err := decoder.Decode(&page); err != nil {
		return nil, err
	}
	return &page, nil
}
