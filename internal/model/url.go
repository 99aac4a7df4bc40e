package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRejected is returned for URL-like strings that name neither an
// authority nor a path, such as a bare "#fragment".
var ErrRejected = errors.New("url rejected: no authority and no path")

// ErrUnsafeCharacter is returned for URL-like strings that carry a space or
// an ASCII control byte. Such bytes would end up verbatim in the request
// line. It wraps ErrRejected.
var ErrUnsafeCharacter = fmt.Errorf("%w: contains a space or control character", ErrRejected)

// AbsoluteURL is a fully resolved request target.
// Its String form is the canonical dedup key of a crawl.
type AbsoluteURL struct {
	authority Authority
	path      string
}

// Authority returns the origin of the URL.
func (u AbsoluteURL) Authority() Authority {
	return u.authority
}

// Path returns the request target, always starting with "/".
// Query strings and fragments are kept as supplied.
func (u AbsoluteURL) Path() string {
	return u.path
}

// IsZero returns true for the zero AbsoluteURL.
func (u AbsoluteURL) IsZero() bool {
	return u.authority.IsZero()
}

// String returns the canonical "http://authority/path" form.
func (u AbsoluteURL) String() string {
	return "http://" + u.authority.String() + u.path
}

// ParsedURL is the result of splitting a URL-like string.
type ParsedURL struct {
	// Authority is set only when HasAuthority is true.
	Authority Authority

	// HasAuthority reports whether the string carried a "//authority" part.
	HasAuthority bool

	// Path always starts with "/".
	Path string
}

// ParseURL splits a URL-like string into its authority and path.
//
// Any scheme is dropped; every URL is fetched over plain HTTP. A path that
// does not start with "/" gets one prepended, without resolving it against
// a base directory. Strings with no authority and an empty path part, for
// example "#top" or "", are rejected with ErrRejected. Spaces and control
// bytes inside the string are rejected with ErrUnsafeCharacter; surrounding
// whitespace is trimmed first.
func ParseURL(raw string) (ParsedURL, error) {
	trimmed := strings.TrimSpace(raw)
	if hasUnsafeByte(trimmed) {
		return ParsedURL{}, ErrUnsafeCharacter
	}
	rest := stripScheme(trimmed)

	var parsed ParsedURL
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		hostPart := rest[:end]
		rest = rest[end:]

		if hostPart != "" {
			a, err := ParseAuthority(hostPart)
			if err != nil && !errors.Is(err, ErrEmptyHost) {
				return ParsedURL{}, fmt.Errorf("parse %q: %w", raw, err)
			}
			if err == nil {
				parsed.Authority = a
				parsed.HasAuthority = true
			}
		}
	}

	if !parsed.HasAuthority && pathPart(rest) == "" {
		return ParsedURL{}, ErrRejected
	}

	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	parsed.Path = rest
	return parsed, nil
}

// Resolve parses raw and substitutes base when raw carries no authority.
func Resolve(raw string, base Authority) (AbsoluteURL, error) {
	parsed, err := ParseURL(raw)
	if err != nil {
		return AbsoluteURL{}, err
	}
	authority := parsed.Authority
	if !parsed.HasAuthority {
		if base.IsZero() {
			return AbsoluteURL{}, ErrRejected
		}
		authority = base
	}
	return AbsoluteURL{authority: authority, path: parsed.Path}, nil
}

// stripScheme removes a leading "scheme:" if present.
// A colon is only treated as a scheme separator when it appears before any
// "/", "?" or "#" and the prefix is a syntactically valid scheme.
func stripScheme(s string) string {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			continue
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
			continue
		case c == ':' && i > 0:
			return s[i+1:]
		}
		return s
	}
	return s
}

// hasUnsafeByte reports whether s contains a space, DEL or a byte below 0x20.
func hasUnsafeByte(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c <= ' ' || c == 0x7f {
			return true
		}
	}
	return false
}

// pathPart returns s up to the first "?" or "#".
func pathPart(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}
