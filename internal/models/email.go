// Package models provides the data structures used throughout the application.
package models

import (
	"strings"
	"time"
)

// Header is a single name/value pair from a raw email payload.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Part is one MIME part of a raw email. Data is base64url-encoded as
// delivered by the provider. Multipart messages nest parts recursively.
type Part struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data,omitempty"`
	Parts    []Part `json:"parts,omitempty"`
}

// RawEmail is the provider-shaped email payload as handed to the
// pipeline by a source connector. The pipeline never mutates it.
type RawEmail struct {
	ID           string   `json:"id"`
	InternalDate int64    `json:"internalDate,string"` // milliseconds since epoch
	Headers      []Header `json:"headers"`
	Parts        []Part   `json:"parts"`
}

// Header returns the value of the first header with the given name,
// case-insensitively, or "" when absent.
func (r RawEmail) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// NormalizedEmail is the canonical form every pipeline stage works on.
// Immutable once produced by the normalizer; downstream stages derive
// new objects rather than mutating it.
type NormalizedEmail struct {
	ID        string    `json:"id"`
	SentAt    time.Time `json:"sentAt"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	PlainText string    `json:"plainText"`
}
