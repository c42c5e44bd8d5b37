package content

import (
	"bytes"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"
)

//go:embed posts/*.md
var postsFS embed.FS

// ErrPostNotFound is returned for unknown post ids
var ErrPostNotFound = errors.New("post not found")

// Categories lists the post categories in display order
var Categories = []string{"tutorial", "research", "case-study", "technical", "update"}

// Post is a blog article
type Post struct {
	ID       string   `json:"id" yaml:"-"`
	Title    string   `json:"title" yaml:"title"`
	Excerpt  string   `json:"excerpt" yaml:"excerpt"`
	Content  string   `json:"content,omitempty" yaml:"-"`
	Author   string   `json:"author" yaml:"author"`
	Date     string   `json:"date" yaml:"date"`
	ReadTime string   `json:"readTime" yaml:"read_time"`
	Tags     []string `json:"tags" yaml:"tags"`
	Category string   `json:"category" yaml:"category"`
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id        TEXT PRIMARY KEY,
	title     TEXT NOT NULL,
	excerpt   TEXT NOT NULL,
	content   TEXT NOT NULL,
	author    TEXT NOT NULL,
	date      TEXT NOT NULL,
	read_time TEXT NOT NULL,
	tags      TEXT NOT NULL,
	category  TEXT NOT NULL
)`

// Store indexes posts in a sqlite database
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the post index at dbPath. An empty path keeps
// the index in memory.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open content index: %w", err)
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create content schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore opens the index and loads the bundled posts into it
func NewStore(dbPath string) (*Store, error) {
	s, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	n, err := s.Load(postsFS, "posts")
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Printf("Loaded %d posts", n)
	return s, nil
}

// Load parses every .md file in dir and upserts it. Files that fail to
// parse are skipped with a warning.
func (s *Store) Load(fsys fs.FS, dir string) (int, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read posts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("Warning: failed to read post %s: %v", entry.Name(), err)
			continue
		}
		post, err := ParsePost(strings.TrimSuffix(entry.Name(), ".md"), data)
		if err != nil {
			log.Printf("Warning: skipping post %s: %v", entry.Name(), err)
			continue
		}
		if err := s.put(post); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func (s *Store) put(p *Post) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO posts (id, title, excerpt, content, author, date, read_time, tags, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Excerpt, p.Content, p.Author, p.Date, p.ReadTime,
		strings.Join(p.Tags, "\n"), p.Category,
	)
	if err != nil {
		return fmt.Errorf("failed to store post %s: %w", p.ID, err)
	}
	return nil
}

// ParsePost splits YAML front matter from the markdown body
func ParsePost(id string, data []byte) (*Post, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, []byte("---\n")) {
		return nil, fmt.Errorf("missing front matter")
	}
	rest := data[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		return nil, fmt.Errorf("unterminated front matter")
	}

	post := &Post{}
	if err := yaml.Unmarshal(rest[:end], post); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	post.ID = id
	post.Content = strings.TrimSpace(string(rest[end+len("\n---\n"):]))
	if post.Title == "" {
		return nil, fmt.Errorf("post has no title")
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return post, nil
}

// Search returns posts in category (all when empty or "all") whose title,
// excerpt or any tag contains query, ignoring case. Newest first; content
// is omitted.
func (s *Store) Search(query, category string) ([]*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT id, title, excerpt, author, date, read_time, tags, category FROM posts`
	var args []interface{}
	if category != "" && category != "all" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY date DESC, id`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	needle := strings.ToLower(strings.TrimSpace(query))
	posts := []*Post{}
	for rows.Next() {
		p := &Post{}
		var tags string
		if err := rows.Scan(&p.ID, &p.Title, &p.Excerpt, &p.Author, &p.Date, &p.ReadTime, &tags, &p.Category); err != nil {
			return nil, err
		}
		p.Tags = splitTags(tags)
		if needle == "" || p.matches(needle) {
			posts = append(posts, p)
		}
	}
	return posts, rows.Err()
}

func (p *Post) matches(needle string) bool {
	if strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Excerpt), needle) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Get returns a post with its content
func (s *Store) Get(id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &Post{}
	var tags string
	err := s.db.QueryRow(
		`SELECT id, title, excerpt, content, author, date, read_time, tags, category FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.Title, &p.Excerpt, &p.Content, &p.Author, &p.Date, &p.ReadTime, &tags, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	return p, nil
}

// Count returns the number of indexed posts
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM posts`).Scan(&n)
	return n, err
}

// Close closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
