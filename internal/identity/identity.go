// Package identity canonicalizes channel addresses. A channel address is an
// opaque string: either a phone number in whatever format the sender typed,
// or a synthetic web-channel marker built from a browser-held client id.
package identity

import "strings"

// WebPrefix marks a synthetic web-channel address.
const WebPrefix = "web:"

// WebAddress builds the synthetic channel address for a browser client. The
// client id lives in the browser's local storage, so the same browser keeps
// resolving to the same session.
func WebAddress(clientID string) string {
	return WebPrefix + clientID
}

// IsWebAddress reports whether addr is a synthetic web-channel address.
func IsWebAddress(addr string) bool {
	return strings.HasPrefix(addr, WebPrefix)
}

// Normalize canonicalizes a raw channel address. Web-channel markers pass
// through unchanged; phone numbers come out in +<country><number> form.
// Normalize is pure and idempotent: applying it to its own output returns
// the identical string.
func Normalize(raw, defaultCountryCode string) string {
	if strings.HasPrefix(raw, WebPrefix) {
		return raw
	}

	addr := strings.Join(strings.Fields(raw), "")

	switch {
	case strings.HasPrefix(addr, "00"):
		// International prefix escape: 0031... -> +31...
		return "+" + addr[2:]
	case strings.HasPrefix(addr, "0"):
		// National format: 06... -> +316...
		return "+" + defaultCountryCode + addr[1:]
	case !strings.HasPrefix(addr, "+"):
		return "+" + addr
	}
	return addr
}
