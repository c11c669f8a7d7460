package jsonfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	in := map[string]any{"a": 1.0, "b": "two"}
	require.NoError(t, Write(path, in, 4))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"a\": 1")

	var out map[string]any
	require.NoError(t, Read(path, &out))
	assert.Equal(t, in, out)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, Write(path, []int{1, 2}, 2))
	require.NoError(t, Write(path, []int{3}, 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestRead_Missing(t *testing.T) {
	t.Parallel()

	var v any
	err := Read(filepath.Join(t.TempDir(), "nope.json"), &v)
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}

func TestRead_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var v any
	err := Read(path, &v)
	require.Error(t, err)
	assert.False(t, IsNotExist(err))
}

func TestBackup(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	backup, err := Backup(path, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, path+".20240501-100000.bak", backup)

	raw, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(raw))
	_, err = os.Stat(path)
	assert.True(t, IsNotExist(err))

	_, err = Backup(path, time.Now())
	assert.Error(t, err)
}
