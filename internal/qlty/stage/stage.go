// Package stage materializes a stable working copy of the files an
// invocation plan touches — workspace entries plus the configuration
// files their drivers read — into an isolated destination directory,
// so a run is never affected by the repository changing underneath it.
package stage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/qlty-sh/qlty/pkg/constants"
	"github.com/qlty-sh/qlty/pkg/logger"
)

var log = logger.New("qlty:stage")

// Area is one run's staging destination: a directory tree that
// mirrors the relative paths of whatever has been staged into it.
type Area struct {
	WorkspaceRoot         string
	DestinationDirectory  string
}

// NewArea creates a fresh, unique destination directory under the
// system temp directory for one run of the workspace at root.
func NewArea(root string) (*Area, error) {
	dest, err := os.MkdirTemp("", "qlty-stage-*")
	if err != nil {
		return nil, fmt.Errorf("stage: creating destination directory: %w", err)
	}
	return &Area{WorkspaceRoot: root, DestinationDirectory: dest}, nil
}

// Stage copies a single workspace entry (a relative path) into the
// destination directory, preserving its relative path.
func (a *Area) Stage(relPath string) error {
	src := filepath.Join(a.WorkspaceRoot, relPath)
	dst := filepath.Join(a.DestinationDirectory, relPath)
	return copyFile(src, dst)
}

// StageAll stages every entry in paths, continuing past individual
// failures and returning the first error encountered (callers running
// this in parallel should still attempt every entry before checking).
func (a *Area) StageAll(paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := a.Stage(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("stage: creating %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("stage: opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("stage: creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("stage: copying %s to %s: %w", src, dst, err)
	}
	return nil
}

// ConfigFileResult is one config file staged on behalf of a plan, in
// both its staging-destination and workspace-root-mirror locations
// (when those differ), recorded so the caller can clean it up once
// the executor finishes with it.
type ConfigFileResult struct {
	// Path is relative to the workspace root.
	Path string
}

// StageConfigFiles copies every distinct config file named across a
// set of plans into both the staging destination (for linters that
// run against the snapshot) and the workspace root's `.qlty/results`
// mirror — matching the "Config staging" contract:
// every plugin's config_files are copied so drivers find configs
// relative to wherever they actually execute from.
func (a *Area) StageConfigFiles(configPaths []string) ([]ConfigFileResult, error) {
	seen := make(map[string]bool, len(configPaths))
	var results []ConfigFileResult

	for _, rel := range configPaths {
		if seen[rel] {
			continue
		}
		seen[rel] = true

		src := filepath.Join(a.WorkspaceRoot, rel)
		if _, err := os.Stat(src); err != nil {
			continue // config file not present in this workspace; nothing to stage
		}

		if err := copyFile(src, filepath.Join(a.DestinationDirectory, rel)); err != nil {
			return results, err
		}

		mirror := filepath.Join(a.WorkspaceRoot, ".qlty", constants.ResultsSubdir, rel)
		if err := copyFile(src, mirror); err != nil {
			return results, err
		}

		results = append(results, ConfigFileResult{Path: rel})
	}

	return results, nil
}

// CopyConfigsIntoToolInstall copies configFiles into toolDir, for
// drivers whose DriverDef sets copy_configs_into_tool_install: some
// tools only look for their configuration next to their own binary,
// not in the invocation directory.
func CopyConfigsIntoToolInstall(configFiles []string, workspaceRoot, toolDir string) ([]ConfigFileResult, error) {
	if err := os.MkdirAll(toolDir, 0o755); err != nil {
		return nil, fmt.Errorf("stage: creating tool directory %s: %w", toolDir, err)
	}

	var results []ConfigFileResult
	for _, rel := range configFiles {
		src := filepath.Join(workspaceRoot, rel)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(toolDir, filepath.Base(rel))
		log.Printf("copying %s to %s", src, dst)
		if err := copyFile(src, dst); err != nil {
			return results, fmt.Errorf("stage: copying config into tool install: %w", err)
		}
		results = append(results, ConfigFileResult{Path: rel})
	}
	return results, nil
}

// Fetch downloads a single plugin-declared asset into both the
// workspace root and the staging destination, per a PluginFetch
// entry's URL/Path.
func Fetch(url, path, workspaceRoot, destinationDir string) (*ConfigFileResult, error) {
	client := &http.Client{Timeout: 60 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("stage: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stage: fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stage: reading %s: %w", url, err)
	}

	for _, dir := range []string{workspaceRoot, destinationDir} {
		dst := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("stage: creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, body, 0o644); err != nil {
			return nil, fmt.Errorf("stage: writing %s: %w", dst, err)
		}
	}

	return &ConfigFileResult{Path: path}, nil
}

// Cleanup best-effort removes every staged config file (from both the
// staging destination and the workspace-root mirror) the executor
// loaded during a run. Remove errors are ignored: a file already
// cleaned up by a concurrent run, or one the OS is still holding open,
// should never fail the overall check.
func (a *Area) Cleanup(loaded []ConfigFileResult) {
	for _, c := range loaded {
		_ = os.Remove(filepath.Join(a.DestinationDirectory, c.Path))
		_ = os.Remove(filepath.Join(a.WorkspaceRoot, ".qlty", constants.ResultsSubdir, c.Path))
	}
	_ = os.RemoveAll(a.DestinationDirectory)
}
