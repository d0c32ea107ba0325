// Package cache implements the content-addressed result store: a
// SHA-256 fingerprint over everything that can change a driver's
// output gates whether the executor has to spawn the tool at all.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/pkg/constants"
)

// CLIMajorMinor is folded into every cache key so a CLI upgrade that
// changes issue shape (new fields, renamed categories) invalidates
// every prior result. Bumped alongside a real release version string
// once one exists; for now it stands in for that.
const CLIMajorMinor = "0.1"

// FileReader reads a file's content for hashing. Swappable in tests;
// Disk reads straight off the filesystem.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Disk reads files directly via os.ReadFile.
type Disk struct{}

func (Disk) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// IssueCache is a directory tree of JSON files, each holding the
// issues produced by one previously-run invocation plan, keyed by a
// fingerprint of everything that could have changed its output.
// Reads never lock; writes go to a temp file and rename into place so
// a reader never observes a partial write.
type IssueCache struct {
	Root   string
	Reader FileReader
}

// NewIssueCache builds an IssueCache rooted at
// <workspaceRoot>/.qlty/results/cache/issues.
func NewIssueCache(workspaceRoot string) *IssueCache {
	return &IssueCache{
		Root:   filepath.Join(workspaceRoot, ".qlty", constants.ResultsSubdir, "cache", "issues"),
		Reader: Disk{},
	}
}

// Get looks up the cached issues for p's current fingerprint. A
// read/hash/decode failure is treated as a miss, never an error: a
// stale or corrupt cache entry should cost a re-run, not fail it.
func (c *IssueCache) Get(p *plan.InvocationPlan) ([]issue.Issue, bool) {
	key, err := c.key(p)
	if err != nil {
		return nil, false
	}

	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return entry.Issues, true
}

// Put writes issues under p's current fingerprint. A failure to
// compute the key or write the entry is swallowed: a cache write is
// an optimization, not a correctness requirement, so a bad write just
// means the next run doesn't get a hit.
func (c *IssueCache) Put(p *plan.InvocationPlan, issues []issue.Issue) {
	key, err := c.key(p)
	if err != nil {
		return
	}
	if issues == nil {
		issues = []issue.Issue{}
	}

	data, err := json.Marshal(cacheEntry{Issues: issues})
	if err != nil {
		return
	}

	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}

type cacheEntry struct {
	Issues []issue.Issue `json:"issues"`
}

// entryPath mirrors the on-disk layout: the key's first two hex
// characters become a directory, sharding entries so no single
// directory holds every cached result.
func (c *IssueCache) entryPath(key string) string {
	return filepath.Join(c.Root, key[:2], key[2:]+".json")
}

// key computes the SHA-256 fingerprint over the plugin name and
// version, driver script, tool fingerprint, every config and
// affects_cache file's content, every target's content, and the CLI
// version — the same material a cache check would need to invalidate
// on any of them changing.
func (c *IssueCache) key(p *plan.InvocationPlan) (string, error) {
	h := sha256.New()

	fmt.Fprintf(h, "plugin:%s\n", p.PluginName)
	fmt.Fprintf(h, "version:%s\n", p.Tool.Version())
	fmt.Fprintf(h, "script:%s\n", p.Driver.Script)
	fmt.Fprintf(h, "fingerprint:%s\n", p.Tool.Fingerprint())
	fmt.Fprintf(h, "cli:%s\n", CLIMajorMinor)

	if err := c.hashFiles(h, "config", p.ConfigFiles); err != nil {
		return "", err
	}

	affectsCache := make([]string, 0, len(p.Plugin.AffectsCache))
	for _, f := range p.Plugin.AffectsCache {
		affectsCache = append(affectsCache, filepath.Join(p.TargetRoot, f))
	}
	if err := c.hashFiles(h, "affects_cache", affectsCache); err != nil {
		return "", err
	}

	targets := make([]string, len(p.Targets))
	for i, t := range p.Targets {
		if filepath.IsAbs(t) {
			targets[i] = t
		} else {
			targets[i] = filepath.Join(p.TargetRoot, t)
		}
	}
	if err := c.hashFiles(h, "target", targets); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashFiles feeds each file's path and content hash into h, sorted so
// the key doesn't depend on slice ordering.
func (c *IssueCache) hashFiles(h interface{ Write([]byte) (int, error) }, label string, paths []string) error {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	for _, path := range sorted {
		data, err := c.Reader.ReadFile(path)
		if err != nil {
			// A referenced config/target file that's gone or
			// unreadable still needs to change the key (so a run
			// doesn't replay a hit for content that no longer
			// exists); hash the path alone in that case.
			fmt.Fprintf(h, "%s:%s:missing\n", label, path)
			continue
		}
		sum := sha256.Sum256(data)
		fmt.Fprintf(h, "%s:%s:%s\n", label, path, hex.EncodeToString(sum[:]))
	}
	return nil
}
