package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	matcher, err := NewMatcher(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		path   string
		ignore bool
	}{
		{".sealdrive", true},
		{".sealdrive/vault/objects/aa", true},
		{".git", true},
		{"keystore/UTC--2024", true},
		{"wallet.key", true},
		{"config.yaml", true},
		{".DS_Store", true},
		{"report.pdf", false},
		{"docs/notes.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignore, matcher.Matches(tt.path))
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	root := t.TempDir()
	rules := `
# 草稿不上传
*.tmp
drafts
!keep.tmp
`
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(rules), 0o644))

	matcher, err := NewMatcher(root)
	require.NoError(t, err)

	tests := []struct {
		path   string
		ignore bool
	}{
		// 默认规则依然生效
		{".sealdrive", true},
		{FileName, true},

		{"a.tmp", true},
		{"nested/b.tmp", true},
		{"drafts", true},
		{"drafts/x.pdf", true},
		{"keep.tmp", false},
		{"final.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.ignore, matcher.Matches(tt.path))
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("anything"))
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
	write("b.pdf")
	write("a.txt")
	write("docs/c.md")
	write("drafts/skip.md")
	write(".sealdrive/config.yaml")
	write("scratch.tmp")
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("drafts\n*.tmp\n"), 0o644))

	files, err := Collect(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "docs", "c.md"),
	}, files)
}

func TestCollect_MissingRoot(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
