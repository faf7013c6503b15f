package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHashAndVerifyPassword(t *testing.T) {
	hasher := NewPasswordHasher(fastParams)

	hash, err := hasher.Hash("Abcd1234")
	require.NoError(t, err)
	assert.Contains(t, string(hash), "$argon2id$v=19$m=8192,t=1,p=1$")

	assert.True(t, hasher.Verify("Abcd1234", hash))
	assert.False(t, hasher.Verify("abcd1234", hash))
}

func TestHashIsSalted(t *testing.T) {
	a, err := HashPasswordWithParams("Abcd1234", fastParams)
	require.NoError(t, err)
	b, err := HashPasswordWithParams("Abcd1234", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordMalformedNeverMatches(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2id$v=19$m=8192,t=1,p=1$",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		assert.False(t, VerifyPassword("Abcd1234", []byte(encoded)), encoded)
	}
}

func TestStrongPassword(t *testing.T) {
	assert.True(t, StrongPassword("Abcd1234"))
	assert.False(t, StrongPassword("Abc123"))
	assert.False(t, StrongPassword("abcd1234"))
	assert.False(t, StrongPassword("ABCD1234"))
	assert.False(t, StrongPassword("Abcdefgh"))
}
