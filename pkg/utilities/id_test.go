package utilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorMonotonic(t *testing.T) {
	g, err := NewIDGenerator(3)
	require.NoError(t, err)

	prev := g.Next()
	for i := 0; i < 10000; i++ {
		next := g.Next()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestIDGeneratorNodeRange(t *testing.T) {
	_, err := NewIDGenerator(1024)
	assert.Error(t, err)
	_, err = NewIDGenerator(-1)
	assert.Error(t, err)
}

func TestDefaultIDGeneratorShared(t *testing.T) {
	assert.Same(t, DefaultIDGenerator(), DefaultIDGenerator())
}

func TestNodeFromEnv(t *testing.T) {
	cases := []struct {
		value string
		node  int64
		ok    bool
	}{
		{"", 1, false},
		{"7", 7, true},
		{"0", 0, true},
		{"1023", 1023, true},
		{"1024", 1, false},
		{"-3", 1, false},
		{"seven", 1, false},
	}
	for _, c := range cases {
		t.Setenv(NodeEnv, c.value)
		node, ok := NodeFromEnv()
		assert.Equal(t, c.node, node, "value %q", c.value)
		assert.Equal(t, c.ok, ok, "value %q", c.value)
	}
}

func TestNewKSUIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewKSUID()
		require.Len(t, id, 27)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestInitWithRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "krishi.log")
	cfg := DefaultConfig()
	cfg.File = file

	lg, err := Init(cfg)
	require.NoError(t, err)
	lg.Info("hello from test")
	_ = lg.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, "debug", levelFromString("debug").String())
	assert.Equal(t, "warn", levelFromString("warning").String())
	assert.Equal(t, "info", levelFromString("chatty").String())
}
