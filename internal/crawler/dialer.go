package crawler

import (
	"context"

	"github.com/nao1215/spider/internal/model"
	"github.com/nao1215/spider/internal/reactor"
)

// Dialer opens a socket to an authority. The socket may still be
// connecting; errors known at dial time are returned synchronously.
type Dialer interface {
	Dial(ctx context.Context, authority model.Authority) (*reactor.Socket, error)
}

// NetDialer dials plain TCP connections.
type NetDialer struct{}

// Dial resolves the authority's host and starts connecting to its port.
func (NetDialer) Dial(ctx context.Context, authority model.Authority) (*reactor.Socket, error) {
	return reactor.Dial(ctx, authority.Host(), authority.Port())
}
