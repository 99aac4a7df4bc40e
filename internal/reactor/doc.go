// Package reactor provides a single-threaded readiness multiplexer for
// plain TCP sockets.
//
// A Multiplexer tracks a set of sockets, each paired with a completion
// callback. Dial starts a non-blocking connect, and Send queues the request
// bytes that Run writes once the socket is writable. Run then blocks in
// poll(2) until at least one socket is ready, drains every readable socket
// into its buffer and, once a socket reaches end-of-stream or fails,
// removes it, closes it and hands the accumulated bytes to the callback.
// Callbacks run on the goroutine that called Run and may register further
// sockets; Run returns once no socket is left.
//
// The package talks to the kernel through golang.org/x/sys/unix rather than
// the net package, because the net package hides readiness behind its own
// runtime poller and offers no way to wait on many connections from a single
// goroutine.
//
// # Usage
//
//	mux, err := reactor.New(reactor.WithChunkSize(4096))
//	if err != nil {
//	    return err
//	}
//	defer mux.Close()
//
//	sock, err := reactor.Dial(ctx, "example.com", 80)
//	if err != nil {
//	    return err
//	}
//	if err := mux.Send(sock, request, func(buf []byte, err error) {
//	    // buf holds the complete response.
//	}); err != nil {
//	    return err
//	}
//	return mux.Run(ctx)
package reactor
