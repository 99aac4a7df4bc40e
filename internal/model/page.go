package model

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// HTMLContentType is the only Content-Type whose bodies are scanned for links.
// The comparison is exact: "text/html; charset=utf-8" does not match.
const HTMLContentType = "text/html"

// Page holds what the crawler learned from one parsed response.
// The body itself is not retained; only its digest and size are.
type Page struct {
	// URL is the canonical URL the response belongs to.
	URL string `json:"url"`

	// StatusCode is the three-digit status from the status line.
	StatusCode int `json:"status_code"`

	// ContentType is the raw Content-Type header value, if any.
	ContentType string `json:"content_type,omitempty"`

	// Location is the raw Location header value of a redirect, if any.
	Location string `json:"location,omitempty"`

	// BodyHash is the SHA3-256 digest of the body in hex.
	// Empty when the body is empty.
	BodyHash string `json:"body_hash,omitempty"`

	// BodySize is the body length in bytes.
	BodySize int `json:"body_size"`

	// LinksFound is the number of hrefs extracted from the body.
	// Zero for pages that were not scanned.
	LinksFound int `json:"links_found,omitempty"`
}

// ComputeHash sets BodyHash and BodySize from the given body.
func (p *Page) ComputeHash(body []byte) {
	p.BodySize = len(body)
	if len(body) == 0 {
		p.BodyHash = ""
		return
	}
	sum := sha3.Sum256(body)
	p.BodyHash = hex.EncodeToString(sum[:])
}

// IsHTML reports whether the page declared itself as exactly text/html.
func (p *Page) IsHTML() bool {
	return p.ContentType == HTMLContentType
}
