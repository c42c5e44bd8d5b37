package content

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ids(posts []*Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestBundledPosts(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	all, err := s.Search("", "")
	require.NoError(t, err)
	require.Len(t, all, 6)
	// newest first
	assert.Equal(t, "app-update-v2", all[0].ID)
	assert.Equal(t, "attention-layers-explained", all[5].ID)
	for _, p := range all {
		assert.Contains(t, Categories, p.Category, p.ID)
		assert.Empty(t, p.Content)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		query    string
		category string
		want     []string
	}{
		{"category only", "", "tutorial", []string{"understanding-transformer-attention", "getting-started-guide"}},
		{"all category", "queen", "all", []string{"bohemian-rhapsody-analysis"}},
		{"title match ignores case", "BERT VS", "", []string{"bert-vs-gpt2-attention"}},
		{"tag match", "roadmap", "", []string{"app-update-v2"}},
		{"excerpt match", "step-by-step", "", []string{"getting-started-guide"}},
		{"query and category", "layer", "technical", []string{"attention-layers-explained"}},
		{"no match", "polka", "", []string{}},
		{"empty category", "", "research", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(tt.query, tt.category)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestGet(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Get("bert-vs-gpt2-attention")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah Chen", p.Author)
	assert.Equal(t, "10 min read", p.ReadTime)
	assert.Equal(t, []string{"bert", "gpt-2", "comparison", "technical"}, p.Tags)
	assert.Contains(t, p.Content, "# BERT vs GPT-2")

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestParsePost(t *testing.T) {
	p, err := ParsePost("x", []byte("---\r\ntitle: Hello\r\ntags: [a]\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, []string{"a"}, p.Tags)
	assert.Equal(t, "body", p.Content)

	bad := map[string]string{
		"no front matter": "just text",
		"unterminated":    "---\ntitle: x\nbody",
		"no title":        "---\nauthor: me\n---\nbody",
		"bad yaml":        "---\ntitle: [unclosed\n---\nbody",
	}
	for name, in := range bad {
		_, err := ParsePost("x", []byte(in))
		assert.Error(t, err, name)
	}
}

func TestLoadSkipsBadPostsAndUpserts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "content.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	fsys := fstest.MapFS{
		"p/good.md":   {Data: []byte("---\ntitle: Good\ncategory: update\n---\nv1")},
		"p/broken.md": {Data: []byte("no front matter")},
		"p/notes.txt": {Data: []byte("ignored")},
	}
	n, err := s.Load(fsys, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fsys["p/good.md"] = &fstest.MapFile{Data: []byte("---\ntitle: Good\ncategory: update\n---\nv2")}
	_, err = s.Load(fsys, "p")
	require.NoError(t, err)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	p, err := s.Get("good")
	require.NoError(t, err)
	assert.Equal(t, "v2", p.Content)
	assert.Equal(t, []string{}, p.Tags)
}
