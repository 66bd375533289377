// Package sniff decides the file extension of a downloaded image. The declared
// Content-Type wins when it names a known image type; otherwise the leading
// bytes are matched against a table of magic signatures.
package sniff

import (
	"bytes"
	"mime"
	"strings"
)

// HeadLen is how many leading bytes are inspected
const HeadLen = 24

// Fallback is returned when there is neither a declared type nor a signature match
const Fallback = "bin"

var declared = map[string]string{
	"image/jpeg":                "jpg",
	"image/jpg":                 "jpg",
	"image/pjpeg":               "jpg",
	"image/png":                 "png",
	"image/gif":                 "gif",
	"image/webp":                "webp",
	"image/bmp":                 "bmp",
	"image/x-ms-bmp":            "bmp",
	"image/tiff":                "tif",
	"image/svg+xml":             "svg",
	"image/x-icon":              "ico",
	"image/vnd.microsoft.icon":  "ico",
	"image/vnd.adobe.photoshop": "psd",
	"image/avif":                "avif",
}

type signature struct {
	ext    string
	offset int
	magic  []byte
}

// signatures must not overlap: no input may match two entries
var signatures = []signature{
	{"png", 0, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}},
	{"jpg", 0, []byte{0xff, 0xd8, 0xff, 0xdb}},
	{"jpg", 0, []byte{0xff, 0xd8, 0xff, 0xe0}},
	{"jpg", 0, []byte{0xff, 0xd8, 0xff, 0xe1}},
	{"gif", 0, []byte("GIF87a")},
	{"gif", 0, []byte("GIF89a")},
	{"tif", 0, []byte{'I', 'I', '*', 0x00}},
	{"tif", 0, []byte{'M', 'M', 0x00, '*'}},
	{"bmp", 0, []byte("BM")},
	{"psd", 0, []byte("8BPS")},
	{"webp", 8, []byte("WEBP")},
}

var riff = []byte("RIFF")

// Extension returns the extension for a resource with the given declared
// Content-Type and body. It never fails.
func Extension(declaredType string, data []byte) string {
	mediaType := normalize(declaredType)
	if ext, ok := declared[mediaType]; ok {
		return ext
	}

	if ext, ok := FromSignature(data); ok {
		return ext
	}

	if mediaType == "" {
		return Fallback
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return sub
	}
	return mediaType
}

// FromSignature matches the first HeadLen bytes of data against the
// signature table
func FromSignature(data []byte) (string, bool) {
	if len(data) > HeadLen {
		data = data[:HeadLen]
	}
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) < end || !bytes.Equal(data[sig.offset:end], sig.magic) {
			continue
		}
		if sig.ext == "webp" && !bytes.HasPrefix(data, riff) {
			continue
		}
		return sig.ext, true
	}
	return "", false
}

func normalize(declaredType string) string {
	declaredType = strings.TrimSpace(declaredType)
	if declaredType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil {
		return mediaType
	}
	mediaType, _, _ := strings.Cut(declaredType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
