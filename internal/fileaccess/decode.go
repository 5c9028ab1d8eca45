package fileaccess

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNotText is returned by DecodeText for content that is not valid text.
var ErrNotText = errors.New("file is not valid UTF-8 text")

// DecodeText converts raw file bytes to a string. A UTF-8 byte order mark is
// stripped and UTF-16 content with a byte order mark is transcoded. Anything
// else must already be valid UTF-8.
func DecodeText(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", ErrNotText
	}
	return string(out), nil
}
