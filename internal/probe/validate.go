package probe

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
)

// DefaultMinImageBytes guards against error pages and placeholder images
// served with an image/* content type.
const DefaultMinImageBytes = 1000

var (
	ErrBadStatus    = errors.New("non-200 status")
	ErrUnauthorized = errors.New("authentication rejected")
	ErrNotImage     = errors.New("content type is not image/*")
	ErrTooSmall     = errors.New("body below minimum image size")
	ErrBadSignature = errors.New("body lacks a known image signature")
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
)

// IsImageSignature reports whether data starts with a JPEG or PNG header.
func IsImageSignature(data []byte) bool {
	return bytes.HasPrefix(data, jpegMagic) || bytes.HasPrefix(data, pngMagic)
}

// Validate applies the hardened hit policy, content-type first: HTTP 200,
// a declared image/* content type, a body above the minimum size, and known
// magic bytes. A well-formed JPEG served as application/octet-stream is
// still rejected; devices that lie about content types lie about content
// too, and the protocol fallback will catch them. minBytes <= 0 selects
// DefaultMinImageBytes.
func Validate(status int, contentType string, body []byte, minBytes int) error {
	if minBytes <= 0 {
		minBytes = DefaultMinImageBytes
	}
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status != http.StatusOK:
		return ErrBadStatus
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ErrNotImage
	}
	if len(body) <= minBytes {
		return ErrTooSmall
	}
	if !IsImageSignature(body) {
		return ErrBadSignature
	}
	return nil
}
