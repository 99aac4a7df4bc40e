package model

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// Authority errors.
var (
	// ErrInvalidPort is returned when an authority carries a port that is not
	// a decimal number in the range 1-65535.
	ErrInvalidPort = errors.New("invalid port in authority")
	// ErrEmptyHost is returned when an authority has no host part.
	ErrEmptyHost = errors.New("authority host cannot be empty")
)

// DefaultPort is the port used when an authority does not name one.
const DefaultPort = 80

// Authority is an immutable value object holding the host and effective port
// of a request target.
//
// The host is kept exactly as supplied. Two authorities with hosts that only
// differ in letter case are different authorities.
type Authority struct {
	host string
	port int
}

// NewAuthority creates an Authority from a host and a port.
// A port of zero selects DefaultPort.
func NewAuthority(host string, port int) (Authority, error) {
	if host == "" {
		return Authority{}, ErrEmptyHost
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return Authority{}, ErrInvalidPort
	}
	return Authority{host: host, port: port}, nil
}

// ParseAuthority parses a "host", "host:port", "[v6]" or "[v6]:port" string.
// A leading "user:password@" part is discarded.
func ParseAuthority(s string) (Authority, error) {
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return Authority{}, ErrEmptyHost
	}

	host, portStr := s, ""
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return Authority{}, ErrEmptyHost
		}
		host = s[1:end]
		rest := s[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return Authority{}, ErrInvalidPort
			}
			portStr = rest[1:]
		}
	} else if i := strings.LastIndex(s, ":"); i >= 0 {
		host, portStr = s[:i], s[i+1:]
	}

	port := 0
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return Authority{}, ErrInvalidPort
		}
		if p == 0 {
			return Authority{}, ErrInvalidPort
		}
		port = p
	}
	return NewAuthority(host, port)
}

// MustParseAuthority parses an authority or panics.
// Use only for known-valid values in tests or initialization.
func MustParseAuthority(s string) Authority {
	a, err := ParseAuthority(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Host returns the host part as supplied.
func (a Authority) Host() string {
	return a.host
}

// Port returns the effective port.
func (a Authority) Port() int {
	return a.port
}

// IsZero returns true for the zero Authority.
func (a Authority) IsZero() bool {
	return a.host == ""
}

// Equal reports whether both authorities have the same host string and
// the same effective port.
func (a Authority) Equal(other Authority) bool {
	return a.host == other.host && a.port == other.port
}

// String renders the authority. The port is omitted when it is DefaultPort,
// so "host" and "host:80" render identically.
func (a Authority) String() string {
	host := a.host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if a.port == DefaultPort || a.port == 0 {
		return host
	}
	return host + ":" + strconv.Itoa(a.port)
}

// Address returns the "host:port" form suitable for dialing.
func (a Authority) Address() string {
	return net.JoinHostPort(a.host, strconv.Itoa(a.port))
}

// SameAuthority reports whether a and b identify the same origin.
func SameAuthority(a, b Authority) bool {
	return a.Equal(b)
}
