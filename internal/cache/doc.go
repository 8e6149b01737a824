// Package cache stores extraction responses on disk so that re-analysing an
// unchanged document does not call the extraction service again.
//
// Entries are JSON files named by a SHA-256 key derived from the document
// bytes and the extraction model. Each entry carries its own expiry.
package cache
