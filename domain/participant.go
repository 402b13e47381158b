// Package domain contains core concepts of the chat system.
// This file defines participants, their display names and sessions.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

const (
	displayNamePrefix = "User"
	minNameSuffix     = 1000
	maxNameSuffix     = 9999 // exclusive
)

var displayNamePattern = regexp.MustCompile(`^User\d{4}$`)

// DisplayName is the server-assigned, human-readable identity of a connection.
// It is not unique: two participants may draw the same name.
type DisplayName string

func (d DisplayName) String() string { return string(d) }

// Valid reports whether the name has the generated "UserNNNN" shape.
func (d DisplayName) Valid() bool {
	return displayNamePattern.MatchString(string(d))
}

type NameGenerator func() DisplayName

// RandomDisplayName draws "User" followed by an integer in [1000, 9999).
func RandomDisplayName() DisplayName {
	suffix := minNameSuffix + rand.IntN(maxNameSuffix-minNameSuffix)
	return DisplayName(fmt.Sprintf("%s%d", displayNamePrefix, suffix))
}

// Session binds one live connection to its display name.
type Session struct {
	ConnID   string
	Name     DisplayName
	JoinedAt time.Time
}
