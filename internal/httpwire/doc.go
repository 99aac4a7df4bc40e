// Package httpwire formats minimal HTTP/1.0 requests and parses complete
// HTTP/1.x responses from an accumulated byte buffer.
//
// The codec works on whole buffers rather than streams: the crawler reads a
// connection until the peer closes it, then hands the bytes to
// ParseResponse. Persistent connections and chunked transfer coding are not
// supported.
package httpwire
