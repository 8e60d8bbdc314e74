// Package archive persists baselines to SQLite.
//
// Each row carries the baseline's metadata in plain columns for listing and
// the full baseline as a zstd-compressed JSON payload. Digests are checked
// on the way in and on the way out, so a tampered row fails to load.
package archive
