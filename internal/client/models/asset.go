package models

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

type AssetStatus string

const (
	AssetPending   AssetStatus = "pending"
	AssetUploading AssetStatus = "uploading"
	AssetSynced    AssetStatus = "synced"
	AssetError     AssetStatus = "error"
)

// Asset is a binary attachment owned by exactly one Record.
type Asset struct {
	ID       string
	RecordID string
	FileName string
	MimeType string

	// Data is the payload encoded as a data URL.
	Data string
	// Thumbnail is a data URL of the derived preview, images only.
	Thumbnail string

	// Size is the decoded byte count of Data.
	Size     int64
	Checksum string

	Status     AssetStatus
	RemoteURL  string
	RetryCount int
	LastError  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsImage reports whether the asset gets a thumbnail.
func (a *Asset) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

var ErrInvalidDataURL = errors.New("invalid data url")

// EncodeDataURL renders data as "data:<mime>;base64,<payload>".
func EncodeDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL is the inverse of EncodeDataURL.
func DecodeDataURL(s string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrInvalidDataURL, err)
	}
	return mime, data, nil
}
