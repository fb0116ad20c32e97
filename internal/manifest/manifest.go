// Package manifest decodes the content server's manifest: the list of
// content blocks currently published, with their hashes and download URLs.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/javanhut/contentsync/internal/wire"
)

// Entry is one published content block.
type Entry struct {
	ID   string `json:"Id"`
	URL  string `json:"URL"`
	Hash string `json:"Hash"` // base64 SHA-256 of the decompressed container
	Size uint64 `json:"Size"` // uncompressed size, for progress totals only
}

// Skipped describes a manifest element that was ignored.
type Skipped struct {
	Index  int
	Reason string
}

// Manifest is the decoded manifest. It is rebuilt on every check.
type Manifest struct {
	Entries   []Entry
	TotalSize uint64
	Skipped   []Skipped
}

// ParseError reports a manifest body that could not be decoded at all.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "manifest: " + e.Reason
}

// Parse decodes a manifest body. Elements missing a required field are
// recorded in Skipped rather than failing the parse; an empty manifest is valid.
func Parse(data []byte) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &ParseError{Reason: "top level is not an object"}
	}
	entries := root.Get("Entries")
	if !entries.IsArray() {
		return nil, &ParseError{Reason: "missing Entries array"}
	}

	m := &Manifest{}
	for i, el := range entries.Array() {
		e, reason := parseEntry(el)
		if reason != "" {
			m.Skipped = append(m.Skipped, Skipped{Index: i, Reason: reason})
			continue
		}
		m.Entries = append(m.Entries, e)
		m.TotalSize += e.Size
	}
	return m, nil
}

func parseEntry(el gjson.Result) (Entry, string) {
	if !el.IsObject() {
		return Entry{}, "not an object"
	}
	var e Entry
	for _, f := range []struct {
		name string
		dst  *string
	}{{"URL", &e.URL}, {"Id", &e.ID}, {"Hash", &e.Hash}} {
		v := el.Get(f.name)
		if v.Type != gjson.String {
			return Entry{}, "missing string field " + f.name
		}
		*f.dst = v.Str
	}
	size, ok := wire.Uint(el.Get("Size"))
	if !ok {
		return Entry{}, "missing non-negative integer field Size"
	}
	e.Size = size
	e.ID = strings.ToLower(e.ID)
	return e, ""
}

// Encode serializes a manifest in the wire format Parse reads.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(struct {
		Entries []Entry `json:"Entries"`
	}{entries}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}
