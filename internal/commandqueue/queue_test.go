package commandqueue_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathsteer/pathsteerd/internal/commandqueue"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
)

type fakeDispatcher struct {
	seen []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, cmd, cmdID string) (string, string) {
	f.seen = append(f.seen, cmdID+":"+cmd)
	return "exec", ""
}

func testLogger() *telemetry.Logger {
	return telemetry.NewLogger(telemetry.LoggerConfig{Output: discard{}}, "test-run")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProcessDirDrainsInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "0002-b.cmd"), "force:sat_a\n")
	writeFile(t, filepath.Join(dir, "0001-a.cmd"), "mode:tripwire\n")

	disp := &fakeDispatcher{}
	q := commandqueue.NewQueue(dir, filepath.Join(dir, "legacy"), disp, testLogger())

	q.Process(context.Background())

	require.Len(t, disp.seen, 2)
	assert.Equal(t, "0001-a.cmd:mode:tripwire", disp.seen[0])
	assert.Equal(t, "0002-b.cmd:force:sat_a", disp.seen[1])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "processed files must be unlinked")
}

func TestProcessDirIgnoresNonCmdAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.txt"), "not a command")
	writeFile(t, filepath.Join(dir, ".hidden.cmd"), "trigger\n")

	disp := &fakeDispatcher{}
	q := commandqueue.NewQueue(dir, filepath.Join(dir, "legacy"), disp, testLogger())
	q.Process(context.Background())

	assert.Empty(t, disp.seen)
}

func TestProcessLegacyFallback(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "legacy-cmd")
	writeFile(t, legacy, "c8000:1\n")

	disp := &fakeDispatcher{}
	q := commandqueue.NewQueue(filepath.Join(dir, "missing-dir"), legacy, disp, testLogger())
	q.Process(context.Background())

	require.Len(t, disp.seen, 1)
	assert.Equal(t, "legacy:c8000:1", disp.seen[0])

	_, err := os.Stat(legacy)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessDirCapsAtMaxFilesPerTick(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < commandqueue.MaxFilesPerTick+10; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("%04d.cmd", i)), "trigger\n")
	}

	disp := &fakeDispatcher{}
	q := commandqueue.NewQueue(dir, filepath.Join(dir, "legacy"), disp, testLogger())
	q.Process(context.Background())

	assert.LessOrEqual(t, len(disp.seen), commandqueue.MaxFilesPerTick)
}
