package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	hash, err := GenerateHash("correct horse")
	require.NoError(t, err)
	require.Regexp(t, `^\$argon2id\$v=19\$m=65536,t=3,p=2\$[A-Za-z0-9+/]+\$[A-Za-z0-9+/]+$`, hash)

	ok, err := VerifyHash("correct horse", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyHash("battery staple", hash)
	require.NoError(t, err)
	require.False(t, ok)

	other, err := GenerateHash("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, hash, other)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, err := VerifyHash("x", bad)
		require.ErrorIs(t, err, ErrInvalidHash, bad)
	}

	_, err := VerifyHash("x", "$argon2id$v=19$m=8,t=1,p=1$!!!$aGFzaA")
	require.Error(t, err)
}

func TestRequestTracker(t *testing.T) {
	now := time.Unix(1000, 0)
	tracker := NewRequestTracker(10*time.Second, 2)
	tracker.now = func() time.Time { return now }

	ok, _ := tracker.Allow("1.2.3.4")
	require.True(t, ok)
	now = now.Add(4 * time.Second)
	ok, _ = tracker.Allow("1.2.3.4")
	require.True(t, ok)

	ok, wait := tracker.Allow("1.2.3.4")
	require.False(t, ok)
	require.Equal(t, 6*time.Second, wait)

	ok, _ = tracker.Allow("5.6.7.8")
	require.True(t, ok)

	now = now.Add(7 * time.Second)
	ok, _ = tracker.Allow("1.2.3.4")
	require.True(t, ok)

	tracker.Reset("1.2.3.4")
	ok, _ = tracker.Allow("1.2.3.4")
	require.True(t, ok)
}

func TestRequestTrackerForgetsIdleClients(t *testing.T) {
	now := time.Unix(1000, 0)
	tracker := NewRequestTracker(10*time.Second, 2)
	tracker.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		ok, _ := tracker.Allow(ip)
		require.True(t, ok)
	}
	require.Equal(t, 3, tracker.Len())

	now = now.Add(11 * time.Second)
	ok, _ := tracker.Allow("10.0.0.4")
	require.True(t, ok)
	require.Equal(t, 1, tracker.Len())

	// A client still inside the window is kept.
	now = now.Add(5 * time.Second)
	ok, _ = tracker.Allow("10.0.0.5")
	require.True(t, ok)
	now = now.Add(6 * time.Second)
	ok, _ = tracker.Allow("10.0.0.6")
	require.True(t, ok)
	require.Equal(t, 2, tracker.Len())
}
