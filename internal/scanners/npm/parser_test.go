package npm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	depExec "depcompliance/internal/exec"
	"depcompliance/internal/model"
)

const outdatedJSON = `{
  "react": {"current": "17.0.2", "wanted": "17.0.2", "latest": "18.2.0", "location": "node_modules/react"},
  "lodash": {"current": "4.17.20", "wanted": "4.17.21", "latest": "4.17.21", "location": "node_modules/lodash"},
  "debug": [
    {"current": "2.6.9", "wanted": "2.6.9", "latest": "4.3.4", "location": "node_modules/debug"},
    {"current": "4.1.0", "wanted": "4.3.4", "latest": "4.3.4", "location": "node_modules/x/node_modules/debug"}
  ],
  "weird": 42
}`

func TestParseOutdated(t *testing.T) {
	entries, err := ParseOutdated(outdatedJSON)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, model.OutdatedEntry{Name: "debug", Current: "2.6.9", Wanted: "2.6.9", Latest: "4.3.4", Location: "node_modules/debug"}, entries[0])
	assert.Equal(t, "lodash", entries[1].Name)
	assert.Equal(t, "react", entries[2].Name)
	assert.Equal(t, "18.2.0", entries[2].Latest)
}

func TestParseOutdated_Empty(t *testing.T) {
	for _, in := range []string{"", "  \n", "{}"} {
		entries, err := ParseOutdated(in)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestParseOutdated_Errors(t *testing.T) {
	_, err := ParseOutdated("npm ERR! something")
	assert.Error(t, err)

	_, err = ParseOutdated(`{"error": {"code": "ENOLOCK", "summary": "no lockfile"}}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENOLOCK")
}

func fakeOutdated(stdout string, code int, runErr error) *Outdated {
	o := NewOutdated(nil)
	o.lookup = func(string) bool { return true }
	o.run = func(context.Context, string, []string, string) (depExec.Result, error) {
		return depExec.Result{Stdout: stdout, ExitCode: code}, runErr
	}
	return o
}

func projectDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"demo"}`), 0644))
	return dir
}

func TestOutdated_ExitOneIsNotAnError(t *testing.T) {
	dir := projectDir(t)
	raw := filepath.Join(t.TempDir(), "raw")

	o := fakeOutdated(outdatedJSON, 1, errors.New("exit status 1"))
	o.RawDir = raw
	entries, err := o.Outdated(context.Background(), dir)

	require.NoError(t, err)
	assert.Len(t, entries, 3)
	files, err := os.ReadDir(raw)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestOutdated_Failures(t *testing.T) {
	_, err := fakeOutdated("", 0, nil).Outdated(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, model.ErrManifestNotFound)

	dir := projectDir(t)

	_, err = fakeOutdated("", depExec.ExitTimeout, context.DeadlineExceeded).Outdated(context.Background(), dir)
	assert.Error(t, err)

	_, err = fakeOutdated("", 1, errors.New("exit status 1")).Outdated(context.Background(), dir)
	assert.Error(t, err)

	o := fakeOutdated("{}", 0, nil)
	o.lookup = func(string) bool { return false }
	_, err = o.Outdated(context.Background(), dir)
	assert.Error(t, err)
}
