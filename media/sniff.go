// Package media turns caller-embedded binary payloads into upstream-hosted URLs.
package media

import "bytes"

// signature is one magic-byte check. Offset-bearing checks (RIFF container)
// need two probes, so the table carries both.
type signature struct {
	mime   string
	prefix []byte
	// second probe at a fixed offset, nil when unused
	at       int
	expected []byte
}

var signatures = []signature{
	{mime: "image/png", prefix: []byte{0x89, 0x50, 0x4E, 0x47}},
	{mime: "image/jpeg", prefix: []byte{0xFF, 0xD8, 0xFF}},
	{mime: "image/gif", prefix: []byte("GIF8")},
	{mime: "image/webp", prefix: []byte("RIFF"), at: 8, expected: []byte("WEBP")},
}

// DefaultMIME is assumed for unrecognized content. The upstream requires some
// MIME on every upload, so unknown bytes are a fallback case, not a failure.
const DefaultMIME = "image/png"

// Sniff returns the MIME type for buf. A non-empty hint short-circuits the
// byte checks; unrecognized content yields DefaultMIME.
func Sniff(buf []byte, hint string) string {
	if hint != "" {
		return hint
	}
	for _, sig := range signatures {
		if !bytes.HasPrefix(buf, sig.prefix) {
			continue
		}
		if sig.expected != nil {
			if len(buf) < sig.at+len(sig.expected) || !bytes.Equal(buf[sig.at:sig.at+len(sig.expected)], sig.expected) {
				continue
			}
		}
		return sig.mime
	}
	return DefaultMIME
}
