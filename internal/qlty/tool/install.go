package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/qlty-sh/qlty/pkg/logger"
	"github.com/qlty-sh/qlty/pkg/stringutil"
)

var log = logger.New("qlty:tool")

// Installer performs the kind-specific steps of a tool's install:
// fetching/building the package into the tool's (already-created)
// directory. Implementations exist per Kind (runtime download,
// language-package install, direct download, GitHub release asset).
type Installer interface {
	// PreInstall runs after the tool's directory is created and before
	// Install (e.g. installing the runtime a package depends on).
	PreInstall(ctx context.Context, t *Tool, out *os.File) error
	// Install performs the actual fetch/build into t.Directory().
	Install(ctx context.Context, t *Tool, out *os.File) error
	// PostInstall runs once Install succeeds, e.g. writing a shim.
	PostInstall(ctx context.Context, t *Tool, out *os.File) error
}

// RunScript runs an install script through a pty, the way an
// interactive package manager (npm, gem, pip) expects a TTY so it
// doesn't downgrade its own output, and returns what it printed,
// capped at maxInstallLogBytes.
func RunScript(ctx context.Context, script string, dir string, env map[string]string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = dir
	cmd.Env = flattenEnv(env)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("tool: starting install script: %w", err)
	}
	defer ptmx.Close()

	var buf strings.Builder
	buf.Grow(4096)
	_, copyErr := copyCapped(&buf, ptmx, maxInstallLogBytes)

	waitErr := cmd.Wait()
	if waitErr != nil {
		return buf.String(), fmt.Errorf("tool: install script failed: %w", waitErr)
	}
	if copyErr != nil {
		return buf.String(), fmt.Errorf("tool: reading install script output: %w", copyErr)
	}
	return buf.String(), nil
}

const maxInstallLogBytes = 10 * 1024 * 1024

func copyCapped(dst *strings.Builder, src io.Reader, max int) (int, error) {
	buf := make([]byte, 32*1024)
	total := 0
	for total < max {
		n, err := src.Read(buf)
		if n > 0 {
			dst.Write(buf[:n])
			total += n
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// Manager installs tools into a shared cache root, coordinating
// concurrent installs of the same tool across processes via a
// filesystem lock and a per-tool donefile.
type Manager struct {
	Installers map[Kind]Installer
}

// NewManager builds a Manager with the given per-kind installers.
func NewManager(installers map[Kind]Installer) *Manager {
	return &Manager{Installers: installers}
}

// Setup ensures t is installed and validated, installing it if
// necessary. Concurrent callers for the same tool (in this process or
// another) serialize on a filesystem lock; a caller that loses the
// race simply observes the donefile once the winner finishes.
func (m *Manager) Setup(ctx context.Context, t *Tool) error {
	if t.Runtime != nil {
		if err := m.Setup(ctx, t.Runtime); err != nil {
			return fmt.Errorf("tool: installing runtime for %s: %w", t.Name(), err)
		}
	}

	if err := os.MkdirAll(t.ParentDirectory(), 0o755); err != nil {
		return fmt.Errorf("tool: creating %s: %w", t.ParentDirectory(), err)
	}

	fl := flock.New(t.lockfilePath())
	locked, err := fl.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return fmt.Errorf("tool: acquiring install lock for %s: %w", t.Name(), err)
	}
	if !locked {
		return fmt.Errorf("tool: timed out acquiring install lock for %s", t.Name())
	}
	defer fl.Unlock()

	if m.alreadyInstalled(t) {
		log.Printf("%s already installed at %s", t.Name(), t.Directory())
		return nil
	}

	if err := m.installWithRetry(ctx, t); err != nil {
		return err
	}

	return m.writeDonefile(t)
}

func (m *Manager) alreadyInstalled(t *Tool) bool {
	if _, err := os.Stat(t.donefilePath()); err != nil {
		return false
	}
	info, err := os.Stat(t.Directory())
	return err == nil && info.IsDir()
}

func (m *Manager) installWithRetry(ctx context.Context, t *Tool) error {
	installer, ok := m.Installers[t.ToolKind()]
	if !ok {
		return fmt.Errorf("tool: no installer registered for kind %s", t.ToolKind())
	}

	if err := os.MkdirAll(t.Directory(), 0o755); err != nil {
		return fmt.Errorf("tool: creating %s: %w", t.Directory(), err)
	}

	logFile, err := os.OpenFile(t.InstallLogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("tool: opening install log for %s: %w", t.Name(), err)
	}
	defer logFile.Close()

	if err := installer.PreInstall(ctx, t, logFile); err != nil {
		return fmt.Errorf("tool: pre-install for %s: %w", t.Name(), err)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxInstallAttempts; attempt++ {
		lastErr = installer.Install(ctx, t, logFile)
		if lastErr == nil {
			break
		}
		log.Printf("install attempt %d/%d for %s failed: %s", attempt, MaxInstallAttempts, t.Name(),
			stringutil.SanitizeErrorMessage(lastErr.Error()))
	}
	if lastErr != nil {
		return fmt.Errorf("tool: installing %s failed after %d attempts: %w (log: %s)",
			t.Name(), MaxInstallAttempts, lastErr, t.InstallLogPath())
	}

	if err := installer.PostInstall(ctx, t, logFile); err != nil {
		return fmt.Errorf("tool: post-install for %s: %w", t.Name(), err)
	}

	return m.validate(ctx, t)
}

func (m *Manager) writeDonefile(t *Tool) error {
	f, err := os.Create(t.donefilePath())
	if err != nil {
		return fmt.Errorf("tool: writing donefile for %s: %w", t.Name(), err)
	}
	return f.Close()
}

// validate runs the tool's version command, when one is configured,
// and compares its output against the declared version.
func (m *Manager) validate(ctx context.Context, t *Tool) error {
	if t.VersionCommand == "" {
		log.Printf("skipping validation, no version command for tool: %s", t.Name())
		return nil
	}

	installed, err := m.installedVersion(ctx, t)
	if err != nil {
		return err
	}

	expected, err := t.expectedVersion()
	if err != nil {
		return err
	}
	if expected == "" {
		log.Printf("tool version is %s but nothing to compare to: %s", installed, t.Name())
		return nil
	}
	if installed != expected {
		return fmt.Errorf("tool: invalid version for %s: got %s, want %s (regex %s)",
			t.Name(), installed, expected, t.versionRegex())
	}
	return nil
}

func (t *Tool) expectedVersion() (string, error) {
	if t.VersionValue == "" {
		return "", nil
	}
	re, err := regexp.Compile(t.versionRegex())
	if err != nil {
		return "", fmt.Errorf("tool: invalid version regex %q: %w", t.versionRegex(), err)
	}
	m := re.FindStringSubmatch(t.VersionValue)
	if m == nil {
		return "", fmt.Errorf("tool: declared version %q does not match regex %q", t.VersionValue, t.versionRegex())
	}
	return m[1], nil
}

func (m *Manager) installedVersion(ctx context.Context, t *Tool) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", t.InterpolateVariables(t.VersionCommand))
	cmd.Env = flattenEnv(t.Env())
	stdout, stderrErr := cmd.CombinedOutput()

	re, err := regexp.Compile(t.versionRegex())
	if err != nil {
		return "", fmt.Errorf("tool: invalid version regex %q: %w", t.versionRegex(), err)
	}
	matches := re.FindStringSubmatch(strings.TrimSpace(string(stdout)))
	if matches == nil {
		if stderrErr != nil {
			return "", fmt.Errorf("tool: version command for %s failed: %w", t.Name(), stderrErr)
		}
		return "", fmt.Errorf("tool: version command output %q does not match regex %q", stdout, t.versionRegex())
	}
	return matches[1], nil
}

// WaitForLock blocks until the install lock for t is released by
// whoever currently holds it, using fsnotify so a losing process
// isn't spin-polling the lock file. Used by callers that want to wait
// for another process's install rather than contend for the lock
// themselves (e.g. a read-only status check).
func WaitForLock(ctx context.Context, t *Tool) error {
	if _, err := os.Stat(t.lockfilePath()); os.IsNotExist(err) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tool: creating watcher for %s: %w", t.Name(), err)
	}
	defer watcher.Close()

	if err := watcher.Add(t.ParentDirectory()); err != nil {
		return fmt.Errorf("tool: watching %s: %w", t.ParentDirectory(), err)
	}

	for {
		if _, err := os.Stat(t.donefilePath()); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-watcher.Events:
			if ev.Name == t.donefilePath() {
				return nil
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("tool: watching %s: %w", t.ParentDirectory(), err)
		}
	}
}
