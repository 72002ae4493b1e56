// Package loader provides item loading from files, SQLite databases and
// HTTP endpoints.
//
// Every source delivers the whole collection at once. Any failure is
// reported as a *DataUnavailableError so hosts can log it and keep running
// with an empty map.
package loader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/vanderheijden86/nodemap/pkg/model"
	"lukechampine.com/blake3"
)

// ErrDataUnavailable matches every *DataUnavailableError via errors.Is.
var ErrDataUnavailable = errors.New("data unavailable")

// DataUnavailableError reports that an item collection could not be loaded.
type DataUnavailableError struct {
	Source string
	Cause  error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("loading items from %s: %v", e.Source, e.Cause)
}

func (e *DataUnavailableError) Unwrap() error { return e.Cause }

func (e *DataUnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

func unavailable(source string, cause error) error {
	return &DataUnavailableError{Source: source, Cause: cause}
}

// Source delivers an ordered item collection.
type Source interface {
	Load(ctx context.Context) ([]model.Item, error)
	String() string
}

// Open picks a source for location: http(s) URLs are fetched, .db, .sqlite
// and .sqlite3 files are read as SQLite, anything else is read as a JSON or
// YAML item file.
func Open(location string) Source {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return &HTTPSource{URL: location}
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".sqlite3"):
		return &SQLiteSource{Path: location}
	}
	return &FileSource{Path: location}
}

// flexID accepts both numeric and string ids.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexID(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("item id must be a string or number, got %s", s)
	}
	*f = flexID(s)
	return nil
}

type rawItem struct {
	ID          flexID `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Src         string `json:"src" yaml:"src"`
	Image       string `json:"image" yaml:"image"`
	Description string `json:"description" yaml:"description"`
}

func (r rawItem) item() model.Item {
	src := r.Src
	if src == "" {
		src = r.Image
	}
	return model.Item{
		ID:          string(r.ID),
		Title:       r.Title,
		ImageSource: src,
		Description: r.Description,
	}
}

// envelope is the collection document. Either key may hold the items.
type envelope struct {
	Images []rawItem `json:"images" yaml:"images"`
	Items  []rawItem `json:"items" yaml:"items"`
}

// ParseJSON decodes {"images": [...]}, {"items": [...]} or a bare array.
func ParseJSON(data []byte) ([]model.Item, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("empty document")
	}
	var raws []rawItem
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decoding item array: %w", err)
		}
	} else {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decoding item document: %w", err)
		}
		raws = append(env.Images, env.Items...)
	}
	return fromRaw(raws), nil
}

func fromRaw(raws []rawItem) []model.Item {
	items := make([]model.Item, len(raws))
	for i, r := range raws {
		items[i] = r.item()
	}
	return items
}

// Normalize assigns UUIDs to items without an id and drops items that still
// fail validation, logging each one. Order is preserved.
func Normalize(items []model.Item, logger *log.Logger) []model.Item {
	if logger == nil {
		logger = log.Default()
	}
	out := make([]model.Item, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			it.ID = uuid.NewString()
		}
		if err := it.Validate(); err != nil {
			logger.Printf("loader: skipping item %d: %v", i, err)
			continue
		}
		if prev, dup := seen[it.ID]; dup {
			logger.Printf("loader: item %d reuses id %q of item %d", i, it.ID, prev)
		}
		seen[it.ID] = i
		out = append(out, it)
	}
	return out
}

// Fingerprint hashes a collection so unchanged reloads can be skipped.
func Fingerprint(items []model.Item) string {
	h := blake3.New(32, nil)
	for _, it := range items {
		for _, f := range []string{it.ID, it.Title, it.ImageSource, it.Description} {
			h.Write([]byte(f))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Load is a convenience wrapper: load from src and normalize.
func Load(ctx context.Context, src Source, logger *log.Logger) ([]model.Item, error) {
	items, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Normalize(items, logger), nil
}
