package accessfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbasket/taskbasket/internal/access"
)

const sampleManifest = `
[[entry]]
workbasket  = "WB-1"
access_id   = "group-clerks"
permissions = ["READ", "READTASKS", "EDITTASKS"]

[[entry]]
workbasket  = "WB-1"
access_id   = "alice"
permissions = ["READ", "READTASKS", "EDITTASKS", "APPEND"]

[[entry]]
workbasket  = "WB-2"
access_id   = "group-clerks"
permissions = []
`

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "WB-1", entries[0].WorkbasketID)
	assert.Equal(t, "group-clerks", entries[0].AccessID)
	assert.True(t, entries[0].Permissions.HasAll([]access.Permission{
		access.PermRead, access.PermReadTasks, access.PermEditTasks,
	}))
	assert.False(t, entries[0].Permissions.Has(access.PermAppend))

	assert.True(t, entries[1].Permissions.Has(access.PermAppend))
	assert.Empty(t, entries[2].Permissions.Slice())
}

func TestParseRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"missing workbasket", "[[entry]]\naccess_id = \"alice\"\npermissions = [\"READ\"]\n"},
		{"missing access id", "[[entry]]\nworkbasket = \"WB-1\"\npermissions = [\"READ\"]\n"},
		{"unknown permission", "[[entry]]\nworkbasket = \"WB-1\"\naccess_id = \"alice\"\npermissions = [\"DESTROY\"]\n"},
		{"broken toml", "[[entry]\nworkbasket = \"WB-1\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloads := make(chan []access.AccessEntry, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(entries []access.AccessEntry) {
			reloads <- entries
		})
	}()

	// Give the watcher a moment to register before the write.
	time.Sleep(100 * time.Millisecond)
	updated := sampleManifest + "\n[[entry]]\nworkbasket = \"WB-3\"\naccess_id = \"bob\"\npermissions = [\"READ\", \"READTASKS\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case entries := <-reloads:
		assert.Len(t, entries, 4)
	case <-ctx.Done():
		t.Fatal("watcher did not reload after write")
	}

	// A broken edit must not reach apply.
	require.NoError(t, os.WriteFile(path, []byte("[[entry]\nbroken"), 0o644))
	select {
	case entries := <-reloads:
		// Some editors emit two events per write; tolerate a duplicate of
		// the previous good state but never a partial one.
		assert.Len(t, entries, 4)
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
