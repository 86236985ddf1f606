package main

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const guestPrefix = "guest_"

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateUUID returns a random (version 4) UUID string
func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateGuestName creates a guest name like "guest_3f2a9c1b"
func GenerateGuestName() string {
	id := uuid.New()
	return guestPrefix + hex.EncodeToString(id[:4])
}

// cleanName trims s to at most max runes, falling back to def when empty
func cleanName(s, def string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}
