package mimetypes

import (
	"mime"
	"strings"
)

type MIME string

const (
	Unknown MIME = "unknown"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"

	VideoMP4  MIME = "video/mp4"
	VideoWEBM MIME = "video/webm"
)

// Matches parses a detected media type, parameters included, and compares it to expected.
func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// IsMedia reports whether the detected type is an image or a video,
// the only kinds of file a message can carry.
func IsMedia(detected string) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	if strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "video/") {
		return MIME(mt), true
	}
	return MIME(mt), false
}

// IsImage reports whether the detected type is a picture, the only kind of file
// a profile can show.
func IsImage(detected string) bool {
	mt, ok := IsMedia(detected)
	return ok && strings.HasPrefix(string(mt), "image/")
}
