package httpwire

// FormatRequest returns the exact bytes of a minimal GET request:
//
//	GET <path> HTTP/1.0\r\n
//	Host: <host>\r\n
//	\r\n
//
// host must be the bare hostname. The port is never sent in the Host header.
func FormatRequest(host, path string) []byte {
	buf := make([]byte, 0, len("GET  HTTP/1.0\r\nHost: \r\n\r\n")+len(path)+len(host))
	buf = append(buf, "GET "...)
	buf = append(buf, path...)
	buf = append(buf, " HTTP/1.0\r\n"...)
	buf = append(buf, "Host: "...)
	buf = append(buf, host...)
	buf = append(buf, "\r\n\r\n"...)
	return buf
}
