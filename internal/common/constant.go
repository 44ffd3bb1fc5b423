// Package common contains shared constants and sentinel errors used across
// fieldsync components.
package common

import "time"

// DeviceIDHeaderName is the gRPC metadata key carrying the capturing device id
// on outbound requests.
const DeviceIDHeaderName = "x-device-id"

// Admission limits for locally stored assets.
const (
	MaxAssetSize    int64 = 5_242_880
	MaxTotalStorage int64 = 52_428_800
)

// Thumbnail derivation parameters. ThumbnailQuality is the JPEG quality
// (0.7 on a 0..1 scale).
const (
	ThumbnailMaxWidth  = 200
	ThumbnailMaxHeight = 200
	ThumbnailQuality   = 70
)

// MaxRetries is the number of failed automatic attempts after which a queued
// item is parked in the error state until a manual retry.
const MaxRetries = 3

// Sync scheduling defaults.
const (
	DefaultAutoSyncInterval     = 30 * time.Second
	DefaultReconnectSettleDelay = 2 * time.Second
)

// LocalIDPrefix marks identifiers issued on the device before the server
// has accepted the entity.
const LocalIDPrefix = "offline_"
