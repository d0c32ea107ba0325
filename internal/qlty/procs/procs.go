// Package procs implements leaf-first process-tree termination: given
// a root PID, find every descendant and kill them from the bottom up
// before killing the root itself, so a driver's subprocess never
// outlives its own timeout.
package procs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/qlty-sh/qlty/pkg/logger"
)

var log = logger.New("qlty:procs")

// snapshot is a point-in-time view of the process table's parent-child
// edges, built once per Terminate call the way the original refreshes
// its whole-system process list before each recursive pass.
type snapshot struct {
	childrenOf map[int][]int
}

// Terminate kills pid and every descendant it has spawned, children
// first (so a parent doesn't reparent orphans mid-kill), using SIGTERM
// followed by SIGKILL for anything still alive.
func Terminate(pid int) {
	snap := takeSnapshot()
	terminateTree(pid, snap)
}

// TerminateAll runs Terminate over every root pid, matching
// terminate_processes's "one call per pid returned by the spawned
// command" behavior.
func TerminateAll(pids []int) {
	snap := takeSnapshot()
	for _, pid := range pids {
		terminateTree(pid, snap)
	}
}

func terminateTree(pid int, snap *snapshot) {
	for _, child := range snap.childrenOf[pid] {
		log.Printf("killing child process: %d", child)
		terminateTree(child, snap)
		killPID(child)
	}

	log.Printf("killing process: %d", pid)
	killPID(pid)
}

func killPID(pid int) {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		// Already exited, or we never had permission; SIGKILL below
		// is the real backstop so this is not fatal.
		log.Printf("SIGTERM failed for %d: %v", pid, err)
	}

	if !waitExit(pid) {
		if err := unix.Kill(pid, unix.SIGKILL); err != nil {
			log.Printf("failed to kill process %d: %v", pid, err)
			return
		}
	}
	log.Printf("successfully killed process: %d", pid)
}

// waitExit gives a SIGTERM'd process a brief grace window, polling
// /proc so we don't block the watchdog goroutine indefinitely.
func waitExit(pid int) bool {
	for i := 0; i < 20; i++ {
		if !processExists(pid) {
			return true
		}
		sleep(50)
	}
	return !processExists(pid)
}

func processExists(pid int) bool {
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return err == nil
}

// sleep is a package-level var so tests can make waitExit instant.
var sleep = func(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// takeSnapshot walks /proc, reading each process's stat file to learn
// its parent pid, and builds a parent -> children index, mirroring
// terminate_process_tree's "refresh then filter by parent()" pass but
// done once up front instead of per recursive call.
func takeSnapshot() *snapshot {
	snap := &snapshot{childrenOf: make(map[int][]int)}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		log.Printf("reading /proc: %v", err)
		return snap
	}

	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ppid, ok := readParentPID(pid)
		if !ok {
			continue
		}
		snap.childrenOf[ppid] = append(snap.childrenOf[ppid], pid)
	}

	return snap
}

// readParentPID parses /proc/<pid>/stat's fourth field. The second
// field (the command name) is parenthesized and may itself contain
// spaces or parentheses, so we split on the last ')' rather than
// tokenizing naively.
func readParentPID(pid int) (int, bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}

	line := string(data)
	closeParen := strings.LastIndexByte(line, ')')
	if closeParen == -1 || closeParen+2 >= len(line) {
		return 0, false
	}

	fields := strings.Fields(line[closeParen+2:])
	if len(fields) < 2 {
		return 0, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return ppid, true
}
