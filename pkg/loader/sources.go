package loader

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vanderheijden86/nodemap/pkg/model"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

// FileSource reads a JSON or YAML item document from disk.
type FileSource struct {
	Path string
}

func (s *FileSource) String() string { return s.Path }

// Load reads and decodes the file. The format follows the extension; .yaml
// and .yml are YAML, everything else is JSON.
func (s *FileSource) Load(ctx context.Context) ([]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(s.Path, err)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, unavailable(s.Path, err)
	}
	var items []model.Item
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		items, err = ParseYAML(data)
	default:
		items, err = ParseJSON(data)
	}
	if err != nil {
		return nil, unavailable(s.Path, err)
	}
	return items, nil
}

// ParseYAML decodes the YAML form of an item document.
func ParseYAML(data []byte) ([]model.Item, error) {
	var raws []rawItem
	if err := yaml.Unmarshal(data, &raws); err == nil {
		return fromRaw(raws), nil
	}
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding item document: %w", err)
	}
	return fromRaw(append(env.Images, env.Items...)), nil
}

// SQLiteSource reads items from a SQLite table with columns
// id, title, src and description.
type SQLiteSource struct {
	Path  string
	Table string // defaults to "items"
}

func (s *SQLiteSource) String() string { return "sqlite:" + s.Path }

func (s *SQLiteSource) table() string {
	if s.Table == "" {
		return "items"
	}
	return s.Table
}

// Load queries every row in insertion order.
func (s *SQLiteSource) Load(ctx context.Context) ([]model.Item, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, unavailable(s.String(), err)
	}
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return nil, unavailable(s.String(), err)
	}
	defer db.Close()

	query := fmt.Sprintf(`SELECT CAST(id AS TEXT), title, COALESCE(src, ''), COALESCE(description, '') FROM %q ORDER BY rowid`, s.table())
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable(s.String(), err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		var id sql.NullString
		if err := rows.Scan(&id, &it.Title, &it.ImageSource, &it.Description); err != nil {
			return nil, unavailable(s.String(), err)
		}
		it.ID = id.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.String(), err)
	}
	return items, nil
}

// WriteSQLite stores items in a fresh table at path, replacing any existing
// table of the same name.
func WriteSQLite(ctx context.Context, path, table string, items []model.Item) error {
	if table == "" {
		table = "items"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table),
		fmt.Sprintf(`CREATE TABLE %q (id TEXT NOT NULL, title TEXT NOT NULL, src TEXT, description TEXT)`, table),
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("preparing table: %w", err)
		}
	}
	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (id, title, src, description) VALUES (?, ?, ?, ?)`, table))
	if err != nil {
		return err
	}
	defer ins.Close()
	for _, it := range items {
		if _, err := ins.ExecContext(ctx, it.ID, it.Title, it.ImageSource, it.Description); err != nil {
			return fmt.Errorf("inserting %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// HTTPSource fetches a JSON item document.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) String() string { return s.URL }

// Load performs a GET and decodes the body. Non-2xx responses are errors.
func (s *HTTPSource) Load(ctx context.Context) ([]model.Item, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, unavailable(s.URL, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, unavailable(s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable(s.URL, fmt.Errorf("unexpected status %s", resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, unavailable(s.URL, err)
	}
	items, err := ParseJSON(data)
	if err != nil {
		return nil, unavailable(s.URL, err)
	}
	return items, nil
}

// StaticSource serves a fixed collection; hosts use it for items already in
// memory.
type StaticSource []model.Item

func (s StaticSource) String() string { return "static" }

func (s StaticSource) Load(context.Context) ([]model.Item, error) {
	out := make([]model.Item, len(s))
	copy(out, s)
	return out, nil
}
