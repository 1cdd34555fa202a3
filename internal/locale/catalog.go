package locale

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/starford/healthlib/internal/models"
)

//go:embed catalog/*.yaml
var embedded embed.FS

type table map[string]string

// Catalog resolves translation keys. Embedded tables form the base; files in
// an optional override directory (en.yaml, zh.yaml) replace individual keys.
type Catalog struct {
	mu     sync.RWMutex
	base   map[models.Lang]table
	tables map[models.Lang]table
}

// NewCatalog loads the embedded tables.
func NewCatalog() (*Catalog, error) {
	base := make(map[models.Lang]table)
	for _, lang := range []models.Lang{models.LangEN, models.LangZH} {
		data, err := embedded.ReadFile("catalog/" + string(lang) + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("locale: read embedded %s: %w", lang, err)
		}
		t, err := parseTable(data)
		if err != nil {
			return nil, fmt.Errorf("locale: parse embedded %s: %w", lang, err)
		}
		base[lang] = t
	}
	return &Catalog{base: base, tables: base}, nil
}

// MustCatalog is NewCatalog for callers that cannot recover from a broken build.
func MustCatalog() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// T returns the string for key in lang, falling back to English and then to the key itself.
func (c *Catalog) T(lang models.Lang, key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.tables[lang][key]; ok && s != "" {
		return s
	}
	if s, ok := c.tables[models.LangEN][key]; ok && s != "" {
		return s
	}
	return key
}

// Keys returns the number of keys known for lang.
func (c *Catalog) Keys(lang models.Lang) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables[lang])
}

// LoadDir rebuilds the tables from the embedded base plus any overrides found
// in dir. A missing directory or file leaves the base untouched.
func (c *Catalog) LoadDir(dir string) error {
	merged := make(map[models.Lang]table, len(c.base))
	for lang, base := range c.base {
		t := make(table, len(base))
		for k, v := range base {
			t[k] = v
		}
		merged[lang] = t

		if dir == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, string(lang)+".yaml"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("locale: read override %s: %w", lang, err)
		}
		over, err := parseTable(data)
		if err != nil {
			return fmt.Errorf("locale: parse override %s: %w", lang, err)
		}
		for k, v := range over {
			t[k] = v
		}
	}

	c.mu.Lock()
	c.tables = merged
	c.mu.Unlock()
	return nil
}

func parseTable(data []byte) (table, error) {
	t := make(table)
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// Translator resolves catalog keys. *Catalog implements it.
type Translator interface {
	T(lang models.Lang, key string) string
}

var _ Translator = (*Catalog)(nil)
