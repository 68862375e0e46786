package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskSpaceErrorTag(t *testing.T) {
	err := DiskSpaceError(95<<20, "need at least 100 MB")

	assert.Equal(t, "[SPACE_LOW:95]", err.Tag)
	assert.Equal(t, "[SPACE_LOW:95] need at least 100 MB", err.Error())
	assert.True(t, errors.Is(err, ErrDiskSpace))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestThemeErrorWrapping(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := fmt.Errorf("download: %w", NetworkError(0, "request failed", base))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, kind)
	assert.True(t, errors.Is(wrapped, ErrNetwork))
	assert.True(t, errors.Is(wrapped, base))
	assert.Contains(t, wrapped.Error(), "[NETWORK] request failed: connection reset")
}

func TestNetworkErrorStatusTag(t *testing.T) {
	err := NetworkError(404, "unexpected status", nil)
	assert.Equal(t, "[HTTP:404]", err.Tag)

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
