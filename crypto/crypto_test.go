package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	password := "correct horse battery staple"
	salt := []byte("somesweetandsaltysalt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey with same inputs produced different results")
	}

	key3 := DeriveKey("different password", salt)
	if bytes.Equal(key1, key3) {
		t.Error("DeriveKey with different passwords produced same results")
	}

	if len(key1) != 32 {
		t.Errorf("Expected 32-byte key, got %d bytes", len(key1))
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	stored, err := HashPassword("Bamika$007")
	require.NoError(t, err)

	hashHex, saltHex, ok := strings.Cut(stored, ".")
	require.True(t, ok, "stored hash must be hash.salt")
	assert.Len(t, hashHex, 64)
	assert.Len(t, saltHex, 32)

	match, err := VerifyPassword("Bamika$007", stored)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = VerifyPassword("bamika$007", stored)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	a, err := HashPassword("same-password")
	require.NoError(t, err)
	b, err := HashPassword("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordMalformed(t *testing.T) {
	for _, stored := range []string{"", "nodot", "zz.00", "abcd.", strings.Repeat("a", 64) + ".zz"} {
		_, err := VerifyPassword("x", stored)
		assert.ErrorIs(t, err, ErrMalformedHash, "stored=%q", stored)
	}
}

func TestRandomToken(t *testing.T) {
	t1 := RandomToken(32)
	t2 := RandomToken(32)

	assert.NotEqual(t, t1, t2)
	assert.Len(t, t1, 43)
}
