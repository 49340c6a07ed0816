package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = HashParams{Time: 1, Memory: 1024, Parallelism: 1}

func TestHashSecret_Verify(t *testing.T) {
	hash, err := HashSecret("482913", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := VerifySecret("482913", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySecret("482914", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSecret_Salted(t *testing.T) {
	a, err := HashSecret("same", fastParams)
	require.NoError(t, err)
	b, err := HashSecret("same", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifySecret_RejectsMalformed(t *testing.T) {
	for _, h := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=1$m=1,t=1,p=1$a$b", "$argon2id$v=19$x$a$b"} {
		_, err := VerifySecret("x", h)
		assert.Error(t, err, h)
	}
}
