package fileindex

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsInvalid(t *testing.T) {
	_, err := NewScheduler(New(t.TempDir(), 0), "not a schedule")
	assert.Error(t, err)
}

func TestSchedulerAcceptsFormats(t *testing.T) {
	for _, expr := range []string{"@every 1m", "*/5 * * * *", "0 */5 * * * *", "@hourly"} {
		_, err := NewScheduler(New(t.TempDir(), 0), expr)
		assert.NoError(t, err, expr)
	}
}

func TestSchedulerRescans(t *testing.T) {
	root := t.TempDir()
	ix := New(root, 0)
	require.NoError(t, ix.Scan())
	require.NoError(t, os.WriteFile(filepath.Join(root, "late.go"), []byte("x"), 0o644))

	s, err := NewScheduler(ix, "@every 1s")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return slices.Contains(ix.Paths(), "/late.go")
	}, 4*time.Second, 50*time.Millisecond)
}
