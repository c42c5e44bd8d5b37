package server

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/httputil"
)

// ContentPackFormat is the manifest format a content pack must declare
const ContentPackFormat = "attention-is-key/posts"

const (
	packManifest    = "manifest.json"
	packPostsDir    = "posts"
	maxPackFileSize = 1 << 20
)

var errInvalidContentPack = errors.New("invalid content pack")

// contentPackManifest is the optional manifest.json at the pack root
type contentPackManifest struct {
	Format      string `json:"format"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// contentPack is a validated pack archive: one root directory holding
// manifest.json and posts/*.md. Everything else in the archive is ignored.
type contentPack struct {
	root  string
	files []*zip.File
}

// contentPackStatus is reported by GET /api/contentpack/status
type contentPackStatus struct {
	Installed    bool   `json:"installed"`
	Path         string `json:"path,omitempty"`
	Version      string `json:"version,omitempty"`
	Description  string `json:"description,omitempty"`
	PackPosts    int    `json:"pack_posts"`
	LoadedPosts  int    `json:"loaded_posts"`
	IndexedPosts int    `json:"indexed_posts"`
	Error        string `json:"error,omitempty"`
}

// handleContentPackStatus reports the installed pack and how much of it is indexed
func (s *Server) handleContentPackStatus(w http.ResponseWriter, r *http.Request) {
	var st contentPackStatus
	if s.posts != nil {
		if n, err := s.posts.Count(); err == nil {
			st.IndexedPosts = n
		}
	}

	settings, err := config.LoadSettings()
	if err != nil {
		st.Error = err.Error()
	}
	if settings.ContentPackPath == "" {
		httputil.RespondJSON(w, http.StatusOK, st)
		return
	}
	st.Path = settings.ContentPackPath

	ids, err := packPostIDs(os.DirFS(settings.ContentPackPath))
	if err != nil {
		st.Error = "content pack posts are missing"
		httputil.RespondJSON(w, http.StatusOK, st)
		return
	}
	st.Installed = true
	st.PackPosts = len(ids)
	if s.posts != nil {
		for _, id := range ids {
			if _, err := s.posts.Get(id); err == nil {
				st.LoadedPosts++
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(settings.ContentPackPath, packManifest)); err == nil {
		var m contentPackManifest
		if json.Unmarshal(data, &m) == nil {
			st.Version = m.Version
			st.Description = m.Description
		}
	}
	httputil.RespondJSON(w, http.StatusOK, st)
}

// handleContentPackInstall unpacks the posts of a pack archive and indexes them
func (s *Server) handleContentPackInstall(w http.ResponseWriter, r *http.Request) {
	if s.posts == nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "content store not available")
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "path to a .zip content pack is required")
		return
	}
	if !strings.EqualFold(filepath.Ext(req.Path), ".zip") {
		httputil.RespondError(w, http.StatusBadRequest, "content pack must be a .zip archive")
		return
	}

	storeDir, err := config.DataStoreDir()
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.packMu.Lock()
	defer s.packMu.Unlock()

	packDir, err := installContentPack(req.Path, filepath.Join(storeDir, "contentpacks"))
	if errors.Is(err, errInvalidContentPack) || errors.Is(err, fs.ErrNotExist) {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	n, err := s.posts.Load(os.DirFS(packDir), packPostsDir)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	settings, _ := config.LoadSettings()
	settings.ContentPackPath = packDir
	if err := config.SaveSettings(settings); err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("Content pack installed: %s (%d posts)", packDir, n)
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"installed": true,
		"path":      packDir,
		"posts":     n,
	})
}

// loadSavedContentPack indexes the posts of a previously installed pack
func (s *Server) loadSavedContentPack() {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Warning: could not load settings: %v", err)
	}
	if settings.ContentPackPath == "" {
		return
	}
	n, err := s.posts.Load(os.DirFS(settings.ContentPackPath), packPostsDir)
	if err != nil {
		log.Printf("Warning: could not load content pack %s: %v", settings.ContentPackPath, err)
		return
	}
	log.Printf("Using content pack: %s (%d posts)", settings.ContentPackPath, n)
}

// packPostIDs lists the post ids a pack directory provides
func packPostIDs(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, packPostsDir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			ids = append(ids, strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	return ids, nil
}

// openContentPack reads and validates the archive layout without extracting
func openContentPack(zr *zip.Reader) (*contentPack, error) {
	pack := &contentPack{}
	var manifest *zip.File
	for _, f := range zr.File {
		name := strings.TrimSuffix(f.Name, "/")
		if name == "" || path.IsAbs(name) || path.Clean(name) != name || name == ".." || strings.HasPrefix(name, "../") {
			return nil, fmt.Errorf("%w: illegal path %q", errInvalidContentPack, f.Name)
		}
		root, rest, _ := strings.Cut(name, "/")
		if pack.root == "" {
			pack.root = root
		} else if root != pack.root {
			return nil, fmt.Errorf("%w: entries outside %s/", errInvalidContentPack, pack.root)
		}

		switch dir, file := path.Split(rest); {
		case f.FileInfo().IsDir():
		case rest == packManifest:
			manifest = f
		case dir == packPostsDir+"/" && strings.HasSuffix(file, ".md"):
			pack.files = append(pack.files, f)
		}
	}

	if len(pack.files) == 0 {
		return nil, fmt.Errorf("%w: no %s/*.md files", errInvalidContentPack, packPostsDir)
	}
	if manifest != nil {
		var m contentPackManifest
		if err := readManifest(manifest, &m); err != nil {
			return nil, err
		}
		pack.files = append(pack.files, manifest)
	}
	return pack, nil
}

func readManifest(f *zip.File, m *contentPackManifest) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(m); err != nil {
		return fmt.Errorf("%w: manifest: %v", errInvalidContentPack, err)
	}
	if m.Format != ContentPackFormat {
		return fmt.Errorf("%w: manifest format %q, want %q", errInvalidContentPack, m.Format, ContentPackFormat)
	}
	return nil
}

// installContentPack writes the pack's posts and manifest under targetDir
// and returns the pack directory. The pack is staged next to its final
// location and swapped in only once every file is written, so a failed
// install leaves the previous pack, if any, in place.
func installContentPack(zipPath, targetDir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if zr != nil {
			zr.Close()
		}
		if errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", errInvalidContentPack, err)
	}
	defer zr.Close()

	pack, err := openContentPack(&zr.Reader)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", err
	}
	staging, err := os.MkdirTemp(targetDir, ".staging-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(staging)

	for _, f := range pack.files {
		if err := writePackFile(f, filepath.Join(staging, filepath.FromSlash(f.Name))); err != nil {
			return "", err
		}
	}

	packDir := filepath.Join(targetDir, pack.root)
	if err := os.RemoveAll(packDir); err != nil {
		return "", err
	}
	if err := os.Rename(filepath.Join(staging, pack.root), packDir); err != nil {
		return "", err
	}
	return packDir, nil
}

func writePackFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errInvalidContentPack, f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(rc, maxPackFileSize)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
