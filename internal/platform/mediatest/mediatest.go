// Package mediatest provides tiny byte payloads that sniff as real media types.
package mediatest

import "bytes"

var (
	PNG  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	JPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	GIF  = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	MP4  = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 0x02, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}
	Text = []byte("plain text is not media")
)

// Sized pads payload with zero bytes up to n so it can be split into chunks.
func Sized(payload []byte, n int) []byte {
	if n <= len(payload) {
		return payload
	}
	return append(append([]byte{}, payload...), bytes.Repeat([]byte{0}, n-len(payload))...)
}
