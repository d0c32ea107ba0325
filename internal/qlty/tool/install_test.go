package tool

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/pkg/testutil"
)

type fakeInstaller struct {
	failAttempts int32
	calls        int32
}

func (f *fakeInstaller) PreInstall(ctx context.Context, t *Tool, out *os.File) error { return nil }

func (f *fakeInstaller) Install(ctx context.Context, t *Tool, out *os.File) error {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failAttempts {
		return assertError("simulated install failure")
	}
	return os.WriteFile(t.Directory()+"/marker", []byte("installed"), 0o644)
}

func (f *fakeInstaller) PostInstall(ctx context.Context, t *Tool, out *os.File) error { return nil }

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }

func TestManagerSetupInstallsOnce(t *testing.T) {
	dir := testutil.TempDir(t, "tool-install-*")
	tl := newTestTool(t, dir)
	installer := &fakeInstaller{}
	mgr := NewManager(map[Kind]Installer{KindRuntimePackage: installer})

	require.NoError(t, mgr.Setup(context.Background(), tl))
	assert.Equal(t, int32(1), installer.calls)

	_, err := os.Stat(tl.donefilePath())
	assert.NoError(t, err)

	require.NoError(t, mgr.Setup(context.Background(), tl))
	assert.Equal(t, int32(1), installer.calls, "second Setup should be a no-op once donefile exists")
}

func TestManagerSetupRetriesOnFailure(t *testing.T) {
	dir := testutil.TempDir(t, "tool-install-*")
	tl := newTestTool(t, dir)
	installer := &fakeInstaller{failAttempts: 2}
	mgr := NewManager(map[Kind]Installer{KindRuntimePackage: installer})

	require.NoError(t, mgr.Setup(context.Background(), tl))
	assert.Equal(t, int32(3), installer.calls)
}

func TestManagerSetupFailsAfterMaxAttempts(t *testing.T) {
	dir := testutil.TempDir(t, "tool-install-*")
	tl := newTestTool(t, dir)
	installer := &fakeInstaller{failAttempts: int32(MaxInstallAttempts)}
	mgr := NewManager(map[Kind]Installer{KindRuntimePackage: installer})

	err := mgr.Setup(context.Background(), tl)
	require.Error(t, err)
	assert.Equal(t, int32(MaxInstallAttempts), installer.calls)

	_, statErr := os.Stat(tl.donefilePath())
	assert.Error(t, statErr, "donefile must not exist after a failed install")
}
