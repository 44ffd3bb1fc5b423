// Package assets persists record attachments and their upload state.
//
// The encoded payload column can be large, so listing methods that only feed
// status views (CountByStatus, TotalSize) never select it.
package assets
