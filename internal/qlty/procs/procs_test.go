package procs

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadParentPIDOfSelf(t *testing.T) {
	ppid, ok := readParentPID(os.Getpid())
	require.True(t, ok)
	assert.Equal(t, os.Getppid(), ppid)
}

func TestReadParentPIDMissingProcess(t *testing.T) {
	_, ok := readParentPID(999999999)
	assert.False(t, ok)
}

func TestTakeSnapshotFindsSelfAsChildOfParent(t *testing.T) {
	snap := takeSnapshot()
	children := snap.childrenOf[os.Getppid()]
	assert.Contains(t, children, os.Getpid())
}

func TestTerminateKillsRunningProcess(t *testing.T) {
	orig := sleep
	sleep = func(ms int) { time.Sleep(time.Millisecond) }
	defer func() { sleep = orig }()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	Terminate(pid)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process was not terminated")
	}
}

func TestProcessExistsForCurrentProcess(t *testing.T) {
	assert.True(t, processExists(os.Getpid()))
	assert.False(t, processExists(999999999))
}
