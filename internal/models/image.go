// Package models defines the domain types for aishow.
package models

import "time"

// Image is an uploaded picture and its user-maintained attributes.
type Image struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
	Hidden    bool      `json:"is_hidden"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	Keywords  []string  `json:"keywords"`
}

// Keyword is one entry of the tagging vocabulary.
type Keyword struct {
	ID   int64  `json:"id"`
	Text string `json:"keyword"`
}

// FileMetadata is a lightweight representation returned by storage listings.
type FileMetadata struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
