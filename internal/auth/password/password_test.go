package password

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("correct horse", encoded))
	assert.False(t, Verify("battery staple", encoded))
	assert.NoError(t, Check(encoded))
}

func TestHashWithReaderIsDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, 16)
	first, err := HashWithReader("secret", bytes.NewReader(salt))
	require.NoError(t, err)
	second, err := HashWithReader("secret", bytes.NewReader(salt))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHashWithReaderShortSalt(t *testing.T) {
	_, err := HashWithReader("secret", bytes.NewReader([]byte{1}))
	assert.Error(t, err)
}

func TestMalformedHashNeverMatches(t *testing.T) {
	encoded, err := Hash("secret")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":         "",
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuv",
		"wrong version": strings.Replace(encoded, "v=19", "v=16", 1),
		"missing param": strings.Replace(encoded, "m=65536,", "", 1),
		"unknown param": strings.Replace(encoded, "p=4", "x=4", 1),
		"zero threads":  strings.Replace(encoded, "p=4", "p=0", 1),
		"bad salt":      strings.Replace(encoded, "$argon2id$v=19$m=65536,t=1,p=4$", "$argon2id$v=19$m=65536,t=1,p=4$!!", 1),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Verify("secret", value))
			assert.ErrorIs(t, Check(value), ErrMalformedHash)
		})
	}
}
