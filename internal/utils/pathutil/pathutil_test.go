package pathutil

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Night Sky", "Night Sky"},
		{"Night: Sky?", "Night_ Sky_"},
		{`a/b\c`, "a_b_c"},
		{"  trailing dots...  ", "trailing dots"},
		{"", "theme"},
		{"...", "theme"},
		{strings.Repeat("x", 80), strings.Repeat("x", 64)},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestSanitizeNameKeepsRunesWhole(t *testing.T) {
	out := SanitizeName(strings.Repeat("テ", 30))

	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 64)
	assert.Equal(t, strings.Repeat("テ", 21), out)
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"abc123", "0005001010040100", "theme-1_b", "v1.2"} {
		assert.NoError(t, ValidateID(id), id)
	}

	for _, id := range []string{"", ".", "..", "../escaped", "a/b", `a\b`, "a:b", "x..y", "tab\tid"} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, id)
	}
}

func TestThemeFolderName(t *testing.T) {
	assert.Equal(t, "Night_ Sky [abc123]", ThemeFolderName("Night: Sky", "abc123"))
}

func TestWithin(t *testing.T) {
	root := filepath.Join("srv", "themes", "x")

	assert.True(t, Within(root, filepath.Join(root, "a", "b.bps")))
	assert.True(t, Within(root, root))
	assert.False(t, Within(root, filepath.Join(root, "..", "y")))
	assert.False(t, Within(root, filepath.Join(root, "..", "..", "escape")))
	assert.True(t, Within(root, filepath.Join(root, "..x")))
}
