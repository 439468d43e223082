package server

import (
	"context"
	"encoding/json"
	"fmt"

	"DialogueWidget/internal/dialogue"
	"DialogueWidget/internal/loader"

	"go.uber.org/zap"
)

// Catalog holds the scenario documents the server publishes. It is backed by
// the built-in seeds, or by a directory of <lang>.json files when dir is set.
type Catalog struct {
	src *loader.CatalogSource
	dir string
	log *zap.Logger
}

// NewCatalog creates a catalog and performs the first load.
func NewCatalog(ctx context.Context, dir string, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Catalog{
		src: loader.NewCatalogSource(nil),
		dir: dir,
		log: log,
	}
	if dir == "" {
		docs, err := SeedDocuments()
		if err != nil {
			return nil, err
		}
		for lang, data := range docs {
			c.src.Set(lang, data)
		}
		return c, nil
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// SeedDocuments renders the built-in scenarios as documents.
func SeedDocuments() (map[string][]byte, error) {
	docs := make(map[string][]byte, len(dialogue.SeedLanguages))
	for _, lang := range dialogue.SeedLanguages {
		s, err := dialogue.NewScenario(lang, dialogue.SeedNodes(lang))
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", lang, err)
		}
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode seed %s: %w", lang, err)
		}
		docs[lang] = data
	}
	return docs, nil
}

// Reload re-reads the directory. Documents that fail validation keep their
// previous version; languages whose file disappeared are dropped.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.dir == "" {
		return nil
	}
	docs, err := loader.DirSource{Dir: c.dir}.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read scenarios from %s: %w", c.dir, err)
	}

	for lang, data := range docs {
		s, err := dialogue.Parse(lang, data)
		if err != nil {
			c.log.Warn("skipping invalid scenario", zap.String("lang", lang), zap.Error(err))
			continue
		}
		if report := dialogue.Lint(s); !report.Clean() {
			c.log.Warn("scenario has structural problems",
				zap.String("lang", lang),
				zap.Int("dangling", len(report.Dangling)),
				zap.Int("unreachable", len(report.Unreachable)))
		}
		c.src.Set(lang, data)
	}
	for _, lang := range c.src.Languages() {
		if _, ok := docs[lang]; !ok {
			c.src.Remove(lang)
		}
	}
	c.log.Info("scenario catalog loaded", zap.String("dir", c.dir), zap.Strings("languages", c.src.Languages()))
	return nil
}

// Source exposes the catalog to loaders.
func (c *Catalog) Source() loader.Source {
	return c.src
}

// Dir returns the backing directory, empty for seeds.
func (c *Catalog) Dir() string {
	return c.dir
}

// Languages lists the published languages.
func (c *Catalog) Languages() []string {
	return c.src.Languages()
}

// Document returns the raw document for lang.
func (c *Catalog) Document(ctx context.Context, lang string) ([]byte, bool) {
	data, err := c.src.Fetch(ctx, loader.NormalizeLang(lang))
	if err != nil {
		return nil, false
	}
	return data, true
}
