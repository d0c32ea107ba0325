package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/config"
	"github.com/qlty-sh/qlty/internal/qlty/issue"
	"github.com/qlty-sh/qlty/internal/qlty/plan"
	"github.com/qlty-sh/qlty/internal/qlty/tool"
	"github.com/qlty-sh/qlty/pkg/testutil"
)

func newTestPlan(t *testing.T, root, targetContent string) *plan.InvocationPlan {
	t.Helper()
	targetPath := filepath.Join(root, "main.rs")
	require.NoError(t, os.WriteFile(targetPath, []byte(targetContent), 0o644))

	tl := &tool.Tool{
		NameValue:     "clippy",
		VersionValue:  "0.1.0",
		KindValue:     tool.KindRuntimePackage,
		ToolsRoot:     root,
		WorkspaceRoot: root,
		Plugin:        &config.PluginDef{Package: "clippy", Version: "0.1.0"},
	}

	return &plan.InvocationPlan{
		PluginName: "clippy",
		DriverName: "lint",
		Driver:     config.DriverDef{Script: "clippy ${target}", CacheResults: true},
		Tool:       tl,
		Targets:    []string{"main.rs"},
		TargetRoot: root,
		Plugin:     config.PluginDef{Package: "clippy", Version: "0.1.0"},
	}
}

func TestIssueCacheRoundTrip(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	c := NewIssueCache(root)

	_, ok := c.Get(p)
	assert.False(t, ok, "miss before any write")

	issues := []issue.Issue{{Tool: "clippy", RuleKey: "needless_return", Message: "boo"}}
	c.Put(p, issues)

	got, ok := c.Get(p)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "needless_return", got[0].RuleKey)
}

func TestIssueCacheMissesWhenTargetContentChanges(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	c := NewIssueCache(root)
	c.Put(p, []issue.Issue{{Tool: "clippy"}})

	_, ok := c.Get(p)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.rs"), []byte("fn main() { x(); }\n"), 0o644))

	_, ok = c.Get(p)
	assert.False(t, ok, "changed target content changes the key")
}

func TestIssueCacheMissesWhenToolFingerprintChanges(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	c := NewIssueCache(root)
	c.Put(p, []issue.Issue{{Tool: "clippy"}})

	p.Tool.Plugin.ExtraPackages = []config.ExtraPackage{{Name: "extra", Version: "1.0.0"}}

	_, ok := c.Get(p)
	assert.False(t, ok, "a different tool fingerprint changes the key")
}

func TestIssueCacheMissesWhenConfigFileContentChanges(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	cfgPath := filepath.Join(root, "clippy.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("threshold = 1\n"), 0o644))
	p.ConfigFiles = []string{cfgPath}

	c := NewIssueCache(root)
	c.Put(p, []issue.Issue{{Tool: "clippy"}})

	require.NoError(t, os.WriteFile(cfgPath, []byte("threshold = 2\n"), 0o644))

	_, ok := c.Get(p)
	assert.False(t, ok)
}

func TestIssueCacheMissesWhenAffectsCacheFileChanges(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.lock"), []byte("v1"), 0o644))
	p.Plugin.AffectsCache = []string{"Cargo.lock"}

	c := NewIssueCache(root)
	c.Put(p, []issue.Issue{{Tool: "clippy"}})

	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.lock"), []byte("v2"), 0o644))

	_, ok := c.Get(p)
	assert.False(t, ok)
}

func TestIssueCacheTreatsMissingEntryFileAsMiss(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	c := NewIssueCache(root)

	_, ok := c.Get(p)
	assert.False(t, ok)
}

func TestIssueCacheEntryPathShardsByFirstTwoHexChars(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	c := NewIssueCache(root)
	c.Put(p, []issue.Issue{{Tool: "clippy"}})

	key, err := c.key(p)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(c.Root, key[:2]))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key[2:]+".json", entries[0].Name())
}

func TestIssueCachePutWritesAtomicallyViaTempRename(t *testing.T) {
	root := testutil.TempDir(t, "cache-*")
	p := newTestPlan(t, root, "fn main() {}\n")
	c := NewIssueCache(root)
	c.Put(p, []issue.Issue{{Tool: "clippy"}})

	key, err := c.key(p)
	require.NoError(t, err)

	_, err = os.Stat(c.entryPath(key) + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not survive a successful write")
}
