package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// LinkExtractor returns the href values of anchor elements in a document.
type LinkExtractor interface {
	ExtractLinks(body []byte, contentType string) ([]string, error)
}

// skippedSchemes lists href prefixes that never lead to a fetchable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// HTMLExtractor extracts links from HTML with goquery.
//
// The body is decoded to UTF-8 first, using the charset named in the
// content type or in a <meta> tag, so non-ASCII paths survive intact.
// Links are returned in document order with duplicates removed. Values
// are returned as written, without resolving them.
type HTMLExtractor struct{}

// ExtractLinks implements LinkExtractor.
func (HTMLExtractor) ExtractLinks(body []byte, contentType string) ([]string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || hasSkippedScheme(href) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links, nil
}

func hasSkippedScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
