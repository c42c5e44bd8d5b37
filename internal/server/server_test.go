package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/backend"
	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/nn"
)

const packPost = `---
title: "Chorus Repetition in Pop"
excerpt: "How repeated hooks pull attention back."
author: "Test Author"
date: "2024-06-01"
read_time: "3 min read"
tags: [pop, chorus]
category: case-study
---

Hooks come back, and so does attention.
`

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pack.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("ATTN_CONFIG_DIR", t.TempDir())

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Version = "test"
	cfg.MockLatency = 0

	analyzer, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	srv, err := New(cfg, analyzer)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Stop() })
	return srv
}

const packManifestJSON = `{"format":"attention-is-key/posts","version":"2.1","description":"chorus posts"}`

func TestInstallContentPack(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"mypack/manifest.json":     packManifestJSON,
		"mypack/posts/chorus.md":   packPost,
		"mypack/posts/nested/x.md": packPost,
		"mypack/posts/notes.txt":   "ignored",
		"mypack/readme.md":         "ignored",
	})
	target := t.TempDir()

	packDir, err := installContentPack(zipPath, target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "mypack"), packDir)
	assert.FileExists(t, filepath.Join(packDir, "manifest.json"))
	assert.FileExists(t, filepath.Join(packDir, "posts", "chorus.md"))
	assert.NoFileExists(t, filepath.Join(packDir, "posts", "nested", "x.md"))
	assert.NoFileExists(t, filepath.Join(packDir, "posts", "notes.txt"))
	assert.NoFileExists(t, filepath.Join(packDir, "readme.md"))

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging dir removed")
}

func TestInstallContentPackReplacesPrevious(t *testing.T) {
	target := t.TempDir()
	first := writeZip(t, map[string]string{
		"mypack/posts/old.md": packPost,
	})
	second := writeZip(t, map[string]string{
		"mypack/posts/new.md": packPost,
	})

	_, err := installContentPack(first, target)
	require.NoError(t, err)
	packDir, err := installContentPack(second, target)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(packDir, "posts", "old.md"))
	assert.FileExists(t, filepath.Join(packDir, "posts", "new.md"))
}

func TestInstallContentPackRejects(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"zip slip", map[string]string{"../evil.md": "escape"}},
		{"nested slip", map[string]string{"mypack/../../evil.md": "escape"}},
		{"absolute path", map[string]string{"/etc/posts/x.md": packPost}},
		{"no posts", map[string]string{"mypack/readme.txt": "nothing"}},
		{"two roots", map[string]string{"a/posts/x.md": packPost, "b/posts/y.md": packPost}},
		{"wrong format", map[string]string{
			"mypack/manifest.json": `{"format":"datapack"}`,
			"mypack/posts/x.md":    packPost,
		}},
		{"bad manifest", map[string]string{
			"mypack/manifest.json": `{`,
			"mypack/posts/x.md":    packPost,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "contentpacks")
			_, err := installContentPack(writeZip(t, tt.files), target)
			assert.ErrorIs(t, err, errInvalidContentPack)
			assert.NoDirExists(t, target, "nothing written for a rejected pack")
		})
	}
}

func TestNewAnalyzer(t *testing.T) {
	cfg := config.Default()

	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &attention.MockAnalyzer{}, a)

	cfg.Engine = config.EngineLocal
	a, err = NewAnalyzer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &nn.Analyzer{}, a)

	cfg.Engine = config.EngineRemote
	_, err = NewAnalyzer(cfg)
	assert.Error(t, err, "remote without a URL")

	cfg.BackendURL = "http://127.0.0.1:9/"
	a, err = NewAnalyzer(cfg)
	require.NoError(t, err)
	assert.IsType(t, &backend.Client{}, a)

	cfg.Engine = "quantum"
	_, err = NewAnalyzer(cfg)
	assert.Error(t, err)
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Unknown front-end paths fall back to the SPA shell
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/blog/some-post", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<html")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/app.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContentPackInstall(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	status := func() contentPackStatus {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/api/contentpack/status", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body contentPackStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	before, err := srv.posts.Count()
	require.NoError(t, err)
	st := status()
	assert.False(t, st.Installed)
	assert.Equal(t, before, st.IndexedPosts)

	zipPath := writeZip(t, map[string]string{
		"chorus-pack/manifest.json":   packManifestJSON,
		"chorus-pack/posts/chorus.md": packPost,
	})
	body, _ := json.Marshal(map[string]string{"path": zipPath})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/contentpack/install", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	post, err := srv.posts.Get("chorus")
	require.NoError(t, err)
	assert.Equal(t, "Chorus Repetition in Pop", post.Title)

	st = status()
	assert.True(t, st.Installed)
	assert.Equal(t, "2.1", st.Version)
	assert.Equal(t, 1, st.PackPosts)
	assert.Equal(t, 1, st.LoadedPosts)
	assert.Equal(t, before+1, st.IndexedPosts)
}

func TestContentPackInstallErrors(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	noPosts := writeZip(t, map[string]string{"empty-pack/readme.txt": "nothing"})
	notZip := filepath.Join(t.TempDir(), "pack.tar")
	require.NoError(t, os.WriteFile(notZip, []byte("x"), 0o644))
	corrupt := filepath.Join(t.TempDir(), "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing path", "", http.StatusBadRequest},
		{"missing file", filepath.Join(t.TempDir(), "nope.zip"), http.StatusBadRequest},
		{"not a zip", notZip, http.StatusBadRequest},
		{"corrupt zip", corrupt, http.StatusBadRequest},
		{"no posts dir", noPosts, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"path": tt.path})
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("POST", "/api/contentpack/install", bytes.NewReader(body)))
			assert.Equal(t, tt.want, w.Code)
		})
	}

	storeDir, err := config.DataStoreDir()
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(storeDir, "contentpacks", "empty-pack"))
}
