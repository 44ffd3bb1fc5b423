// Package media classifies captured attachments and derives previews.
package media

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

var accepted = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"application/pdf":          ".pdf",
	"application/msword":       ".doc",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
}

// Normalize lower-cases a media type and drops its parameters.
func Normalize(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// Detect sniffs the media type from content.
func Detect(data []byte) string {
	return Normalize(mimetype.Detect(data).String())
}

// Resolve returns the media type to store for an attachment. An empty
// declared type is sniffed from data. Types outside the accepted set fail
// with common.ErrUnsupportedType.
func Resolve(declared string, data []byte) (string, error) {
	mime := Normalize(declared)
	if mime == "" || mime == "application/octet-stream" {
		mime = Detect(data)
	}
	if _, ok := accepted[mime]; !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnsupportedType, mime)
	}
	return mime, nil
}

func IsAccepted(mime string) bool {
	_, ok := accepted[Normalize(mime)]
	return ok
}

// Extension returns the file extension for an accepted type, or "".
func Extension(mime string) string {
	return accepted[Normalize(mime)]
}

func IsImage(mime string) bool {
	return strings.HasPrefix(Normalize(mime), "image/")
}

// Thumbnail scales an image to fit common.ThumbnailMaxWidth x
// common.ThumbnailMaxHeight, keeping the aspect ratio, and encodes it as JPEG
// at common.ThumbnailQuality. Images already inside the box are re-encoded
// at their own size.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, common.ThumbnailMaxWidth, common.ThumbnailMaxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(common.ThumbnailQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
