// Package datastream implements the C8 HTTP data channel: a per-client
// streaming session that pairs a client id with a bound encoder and
// pushes encoded audio over the data socket.
package datastream

import "strings"

// substringAfterFirstEquals implements P5: for an input containing
// key=value, returns the substring after the first '='; for an input
// with no '=', returns false.
func substringAfterFirstEquals(s string) (string, bool) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return "", false
	}
	return s[idx+1:], true
}

// ExtractClientID parses a client id out of a request-target or full
// request line containing a `player=<value>` query parameter. Per
// spec.md §8 scenario 1, the raw substring after the first '=' may
// carry trailing request bytes (the rest of the query string, the HTTP
// version, line terminators); this trims at the first whitespace to
// recover just the id.
func ExtractClientID(requestLine string) (string, bool) {
	v, ok := substringAfterFirstEquals(requestLine)
	if !ok {
		return "", false
	}
	if idx := strings.IndexAny(v, " \t\r\n"); idx >= 0 {
		v = v[:idx]
	}
	return v, true
}
