// Package i18n translates dotted message keys for host chrome (hints,
// control labels, modal text). The map engine itself never translates.
package i18n

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var builtin embed.FS

// Language describes a supported locale.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
	Flag       string `json:"flag"`
	RTL        bool   `json:"rtl"`
}

// Dir returns the HTML text direction for the language.
func (l Language) Dir() string {
	if l.RTL {
		return "rtl"
	}
	return "ltr"
}

// DefaultLanguage is used when a key is missing from the current language.
const DefaultLanguage = "en"

// Languages lists every supported locale in menu order.
var Languages = []Language{
	{Code: "en", Name: "English", NativeName: "English", Flag: "🇺🇸"},
	{Code: "zh", Name: "Chinese", NativeName: "中文", Flag: "🇨🇳"},
	{Code: "es", Name: "Spanish", NativeName: "Español", Flag: "🇪🇸"},
	{Code: "hi", Name: "Hindi", NativeName: "हिन्दी", Flag: "🇮🇳"},
	{Code: "ar", Name: "Arabic", NativeName: "العربية", Flag: "🇦🇪", RTL: true},
}

// LookupLanguage finds a supported language by code.
func LookupLanguage(code string) (Language, bool) {
	for _, l := range Languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

var paramPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Translator resolves keys against per-language message trees. Lookups fall
// back from the current language to DefaultLanguage and finally to the key
// itself.
type Translator struct {
	current   string
	tables    map[string]map[string]any
	logger    *log.Logger
	listeners []func(Language)
}

// New returns a translator preloaded with the built-in locales.
func New(logger *log.Logger) *Translator {
	if logger == nil {
		logger = log.Default()
	}
	t := &Translator{
		current: DefaultLanguage,
		tables:  make(map[string]map[string]any),
		logger:  logger,
	}
	entries, err := fs.ReadDir(builtin, "locales")
	if err != nil {
		logger.Printf("i18n: reading built-in locales: %v", err)
		return t
	}
	for _, e := range entries {
		f, err := builtin.Open("locales/" + e.Name())
		if err != nil {
			continue
		}
		code := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if err := t.Load(code, f, "yaml"); err != nil {
			logger.Printf("i18n: built-in locale %s: %v", code, err)
		}
		f.Close()
	}
	return t
}

// Load merges a locale file for code. format is "yaml" or "json". Keys in r
// override keys already loaded for that language.
func (t *Translator) Load(code string, r io.Reader, format string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading locale %s: %w", code, err)
	}
	tree := make(map[string]any)
	switch format {
	case "json":
		err = json.Unmarshal(data, &tree)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &tree)
	default:
		return fmt.Errorf("locale %s: unsupported format %q", code, format)
	}
	if err != nil {
		return fmt.Errorf("parsing locale %s: %w", code, err)
	}
	if existing, ok := t.tables[code]; ok {
		merge(existing, tree)
		return nil
	}
	t.tables[code] = tree
	return nil
}

// LoadDir loads every <code>.yaml, <code>.yml and <code>.json file in dir.
// Files for unsupported language codes are skipped.
func (t *Translator) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		code := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, ok := LookupLanguage(code); !ok {
			continue
		}
		if ext != "yaml" && ext != "yml" && ext != "json" {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		err = t.Load(code, f, ext)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// SetLanguage switches the current language.
func (t *Translator) SetLanguage(code string) error {
	lang, ok := LookupLanguage(code)
	if !ok {
		return fmt.Errorf("language %q is not supported", code)
	}
	t.current = code
	for _, fn := range t.listeners {
		fn(lang)
	}
	return nil
}

// Next cycles to the following supported language.
func (t *Translator) Next() Language {
	for i, l := range Languages {
		if l.Code == t.current {
			next := Languages[(i+1)%len(Languages)]
			_ = t.SetLanguage(next.Code)
			return next
		}
	}
	_ = t.SetLanguage(DefaultLanguage)
	return Languages[0]
}

// Language returns the current language.
func (t *Translator) Language() Language {
	l, _ := LookupLanguage(t.current)
	return l
}

// OnChange registers a listener for language switches.
func (t *Translator) OnChange(fn func(Language)) {
	t.listeners = append(t.listeners, fn)
}

// T translates key.
func (t *Translator) T(key string) string {
	return t.Tf(key, nil)
}

// Tf translates key and substitutes {{name}} placeholders from params.
// Unknown placeholders are left as is.
func (t *Translator) Tf(key string, params map[string]string) string {
	v, ok := lookup(t.tables[t.current], key)
	if !ok && t.current != DefaultLanguage {
		v, ok = lookup(t.tables[DefaultLanguage], key)
	}
	if !ok {
		t.logger.Printf("i18n: key %q not found for language %q", key, t.current)
		return key
	}
	if len(params) == 0 {
		return v
	}
	return paramPattern.ReplaceAllStringFunc(v, func(m string) string {
		name := m[2 : len(m)-2]
		if p, ok := params[name]; ok {
			return p
		}
		return m
	})
}

// Keys returns every leaf key of a language, sorted.
func (t *Translator) Keys(code string) []string {
	var keys []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(full, sub)
				continue
			}
			keys = append(keys, full)
		}
	}
	walk("", t.tables[code])
	sort.Strings(keys)
	return keys
}

func lookup(tree map[string]any, key string) (string, bool) {
	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = m[part]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				merge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}
