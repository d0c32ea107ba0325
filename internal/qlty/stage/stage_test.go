package stage

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStagePreservesRelativePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.go"), "package a")

	area, err := NewArea(root)
	require.NoError(t, err)
	defer os.RemoveAll(area.DestinationDirectory)

	require.NoError(t, area.Stage("src/a.go"))

	got, err := os.ReadFile(filepath.Join(area.DestinationDirectory, "src", "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "package a", string(got))
}

func TestStageAllContinuesPastMissingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "a")

	area, err := NewArea(root)
	require.NoError(t, err)
	defer os.RemoveAll(area.DestinationDirectory)

	err = area.StageAll([]string{"a.go", "missing.go"})
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(area.DestinationDirectory, "a.go"))
	assert.NoError(t, statErr, "a.go should still be staged even though missing.go failed")
}

func TestStageConfigFilesCopiesToDestinationAndMirror(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".eslintrc"), "{}")

	area, err := NewArea(root)
	require.NoError(t, err)
	defer os.RemoveAll(area.DestinationDirectory)

	results, err := area.StageConfigFiles([]string{".eslintrc", ".eslintrc"})
	require.NoError(t, err)
	require.Len(t, results, 1, "duplicate config paths should be staged once")

	_, err = os.Stat(filepath.Join(area.DestinationDirectory, ".eslintrc"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, ".qlty", "results", ".eslintrc"))
	assert.NoError(t, err)
}

func TestStageConfigFilesSkipsAbsentFiles(t *testing.T) {
	root := t.TempDir()

	area, err := NewArea(root)
	require.NoError(t, err)
	defer os.RemoveAll(area.DestinationDirectory)

	results, err := area.StageConfigFiles([]string{"does-not-exist.yml"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCopyConfigsIntoToolInstall(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".rubocop.yml"), "rules: {}")
	toolDir := filepath.Join(t.TempDir(), "rubocop-install")

	results, err := CopyConfigsIntoToolInstall([]string{".rubocop.yml"}, root, toolDir)
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, err = os.Stat(filepath.Join(toolDir, ".rubocop.yml"))
	assert.NoError(t, err)
}

func TestFetchWritesToBothLocations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ruleset-data"))
	}))
	defer server.Close()

	root := t.TempDir()
	dest := t.TempDir()

	result, err := Fetch(server.URL, "rules/custom.yml", root, dest)
	require.NoError(t, err)
	assert.Equal(t, "rules/custom.yml", result.Path)

	for _, dir := range []string{root, dest} {
		got, err := os.ReadFile(filepath.Join(dir, "rules", "custom.yml"))
		require.NoError(t, err)
		assert.Equal(t, "ruleset-data", string(got))
	}
}

func TestFetchErrorsOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Fetch(server.URL, "rules/custom.yml", t.TempDir(), t.TempDir())
	assert.Error(t, err)
}

func TestCleanupRemovesStagedFilesAndDestination(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".eslintrc"), "{}")

	area, err := NewArea(root)
	require.NoError(t, err)

	results, err := area.StageConfigFiles([]string{".eslintrc"})
	require.NoError(t, err)

	area.Cleanup(results)

	_, err = os.Stat(area.DestinationDirectory)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, ".qlty", "results", ".eslintrc"))
	assert.True(t, os.IsNotExist(err))
}
