package referralcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code := Generate()
		assert.Len(t, code, CodeLength)
		assert.True(t, ValidFormat(code), "generated code %q must satisfy the format", code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 90, "generated codes should rarely collide")
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("ABCD1234"))
	assert.True(t, ValidFormat("ABCD"))
	assert.True(t, ValidFormat("A1B2C3D4E5F6G7H8"))

	assert.False(t, ValidFormat(""))
	assert.False(t, ValidFormat("abc"))
	assert.False(t, ValidFormat("abcd1234"), "lowercase is rejected")
	assert.False(t, ValidFormat("ABC"))
	assert.False(t, ValidFormat("A1B2C3D4E5F6G7H8X"), "17 chars is too long")
	assert.False(t, ValidFormat("ABCD-123"))
}

func TestLink(t *testing.T) {
	assert.Equal(t, "https://app.example.com/register?ref=ABCD1234", Link("https://app.example.com", "ABCD1234"))
	assert.Equal(t, "https://app.example.com/register?ref=ABCD1234", Link("https://app.example.com/", "ABCD1234"))
}
