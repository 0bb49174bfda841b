package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
)

const (
	memory      = 64 * 1024
	iterations  = 3
	parallelism = 2
	keyLength   = 32
	saltLength  = 16
)

var ErrInvalidHash = errors.New("invalid argon2id hash")

// GenerateHash creates a new hash from a passphrase
func GenerateHash(passphrase string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(passphrase), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyHash checks if a passphrase matches a previously generated hash
func VerifyHash(passphrase string, encodedHash string) (bool, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	salt, err := decodeB64(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	storedHash, err := decodeB64(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	computedHash := argon2.IDKey([]byte(passphrase), salt, iter, mem, par, uint32(len(storedHash)))
	return subtle.ConstantTimeCompare(storedHash, computedHash) == 1, nil
}

// decodeB64 accepts padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// RequestTracker rate limits callers in a sliding window, keyed by client
// address.
type RequestTracker struct {
	requests map[string][]time.Time
	mutex    sync.Mutex

	window    time.Duration
	max       int
	now       func() time.Time
	lastPrune time.Time
}

// NewRequestTracker allows max requests per key within window.
func NewRequestTracker(window time.Duration, max int) *RequestTracker {
	return &RequestTracker{
		requests: make(map[string][]time.Time),
		window:   window,
		max:      max,
		now:      time.Now,
	}
}

// Allow records a request for key. It reports whether the request is within
// the limit and, if not, how long until the oldest request expires.
func (t *RequestTracker) Allow(key string) (bool, time.Duration) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := t.now()
	cutoff := now.Add(-t.window)

	recent := t.requests[key][:0]
	for _, ts := range t.requests[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= t.max {
		t.requests[key] = recent
		return false, recent[0].Sub(cutoff)
	}
	if now.Sub(t.lastPrune) >= t.window {
		t.pruneLocked(cutoff)
		t.lastPrune = now
	}

	t.requests[key] = append(recent, now)
	return true, 0
}

// pruneLocked drops keys whose requests have all expired. It runs at most
// once per window.
func (t *RequestTracker) pruneLocked(cutoff time.Time) {
	for key, times := range t.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(t.requests, key)
		}
	}
}

// Len returns the number of keys currently tracked.
func (t *RequestTracker) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.requests)
}

// Reset forgets every request recorded for key.
func (t *RequestTracker) Reset(key string) {
	t.mutex.Lock()
	delete(t.requests, key)
	t.mutex.Unlock()
}
