// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package auth holds password hashing and session token generation.
//
// Hashes are PBKDF2-HMAC-SHA512 encoded as
//
//	pbkdf2_sha512$<iterations>$<salt hex>$<hash hex>
//
// The older "<salt hex>:<hash hex>" form (1000 iterations) still verifies so
// accounts created before the format change keep working.
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Iterations       = 100_000
	legacyIterations = 1000
	saltLen          = 16
	keyLen           = 64
	scheme           = "pbkdf2_sha512"
)

func HashPassword(password string) (string, error) {
	return hashWithIterations(password, Iterations)
}

func hashWithIterations(password string, iterations int) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha512.New)
	return fmt.Sprintf("%s$%d$%s$%s", scheme, iterations, hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// VerifyPassword reports whether password matches encoded. Malformed hashes
// never match.
func VerifyPassword(password, encoded string) bool {
	iterations, salt, want, ok := decode(encoded)
	if !ok {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash is true for legacy or weaker hashes that should be upgraded
// after a successful login.
func NeedsRehash(encoded string) bool {
	iterations, _, _, ok := decode(encoded)
	return !ok || iterations < Iterations
}

func decode(encoded string) (int, []byte, []byte, bool) {
	if salt, hash, found := strings.Cut(encoded, ":"); found && !strings.Contains(encoded, "$") {
		s, err1 := hex.DecodeString(salt)
		h, err2 := hex.DecodeString(hash)
		if err1 != nil || err2 != nil || len(s) == 0 || len(h) == 0 {
			return 0, nil, nil, false
		}
		return legacyIterations, s, h, true
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != scheme {
		return 0, nil, nil, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, false
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, false
	}
	hash, err := hex.DecodeString(parts[3])
	if err != nil || len(hash) == 0 {
		return 0, nil, nil, false
	}
	return iterations, salt, hash, true
}

// NewSessionID returns 32 random bytes, hex encoded.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
