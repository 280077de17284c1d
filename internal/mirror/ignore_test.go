package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleListMatchesFilesAndDirs(t *testing.T) {
	rules := NewRuleList("*.tmp", "cache/", "build")

	assert.True(t, rules.Excluded("scratch.tmp", false))
	assert.True(t, rules.Excluded("deep/nested/scratch.tmp", false))

	// dir-only pattern applies to directories, not same-named files
	assert.True(t, rules.Excluded("cache", true))
	assert.False(t, rules.Excluded("cache", false))
	assert.True(t, rules.Excluded("sub/cache", true))

	// bare pattern hits both kinds
	assert.True(t, rules.Excluded("build", true))
	assert.True(t, rules.Excluded("build", false))

	assert.False(t, rules.Excluded("keep.txt", false))
	assert.Equal(t, 3, rules.Len())
}

func TestRuleListEmptyMirrorsEverything(t *testing.T) {
	rules := NewRuleList()
	assert.False(t, rules.Excluded("anything.log", false))
	assert.False(t, rules.Excluded("dir", true))
	assert.Zero(t, rules.Len())
}

func TestRuleListNilSafe(t *testing.T) {
	var rules *RuleList
	assert.False(t, rules.Excluded("anything", false))
	assert.Zero(t, rules.Len())
}

func TestLoadRuleList(t *testing.T) {
	rulesPath := filepath.Join(t.TempDir(), "excludes.txt")
	require.NoError(t, os.WriteFile(rulesPath, []byte("*.log\n\ncache/\n"), 0o644))

	rules, err := LoadRuleList(rulesPath, "*.tmp")
	require.NoError(t, err)

	// blank line dropped, inline pattern appended
	assert.Equal(t, 3, rules.Len())
	assert.True(t, rules.Excluded("run.log", false))
	assert.True(t, rules.Excluded("cache", true))
	assert.True(t, rules.Excluded("x.tmp", false))
	assert.False(t, rules.Excluded("keep", false))
}

func TestLoadRuleListMissingFile(t *testing.T) {
	_, err := LoadRuleList(filepath.Join(t.TempDir(), "absent.rules"))
	assert.Error(t, err)
}

func TestLoadRuleListEmptyPath(t *testing.T) {
	rules, err := LoadRuleList("", "*.bak")
	require.NoError(t, err)
	assert.True(t, rules.Excluded("a.bak", false))
	assert.Equal(t, 1, rules.Len())
}
