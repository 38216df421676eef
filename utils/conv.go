package utils

import (
	"bytes"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeText converts script or name data into a Go string. UTF-8 input
// (with or without BOM) is kept as is, anything else is decoded with legacy.
func DecodeText(data []byte, legacy *charmap.Charmap) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf})
	if utf8.Valid(data) {
		return string(data), nil
	}

	s, _, err := transform.Bytes(legacy.NewDecoder(), data)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to decode text as %v", legacy)
	}
	return string(s), nil
}
