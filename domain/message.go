// Package domain contains core concepts of the chat system.
// This file defines the entries of the chat stream and presence snapshots.
// They are built once and shared read-only by every delivery.
package domain

import (
	"time"
)

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

const uploadsPath = "/uploads/"

// ChatMessage is a text entry of the chat stream.
// Plaintext is only filled when the server is configured to echo it.
type ChatMessage struct {
	ID         string
	Sender     DisplayName
	Ciphertext string
	Plaintext  string
	Timestamp  time.Time
}

func (ChatMessage) Kind() MessageKind { return KindText }

// FileNotice announces a file already stored by the blob store.
type FileNotice struct {
	ID           string
	Sender       DisplayName
	StoredName   string
	OriginalName string
	SizeBytes    int64
	URL          string
	Timestamp    time.Time
}

func (FileNotice) Kind() MessageKind { return KindFile }

// PresenceSnapshot is the participant list right after ChangedUser joined or left.
type PresenceSnapshot struct {
	ChangedUser DisplayName
	AllUsers    []DisplayName
	Timestamp   time.Time
}

// UploadURL derives the retrieval path of a stored blob.
func UploadURL(storedName string) string {
	return uploadsPath + storedName
}
