package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxDocumentBytes caps how much of a scenario document is read.
const maxDocumentBytes = 4 << 20

// ResourcePath is the path of a language's document relative to a site root.
func ResourcePath(lang string) string {
	return "/data/dialogues/" + lang + ".json"
}

/* ------------------------------- HTTP ------------------------------- */

// HTTPSource fetches documents from <BaseURL>/data/dialogues/<lang>.json.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource creates an HTTPSource with a client timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, lang string) ([]byte, error) {
	if !ValidLang(lang) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLang, lang)
	}
	u, err := url.JoinPath(s.BaseURL, ResourcePath(lang))
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrResourceMissing, u)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", u, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("fetch %s: document larger than %d bytes", u, maxDocumentBytes)
	}
	return data, nil
}

/* ---------------------------- Directory ----------------------------- */

// DirSource reads <Dir>/<lang>.json from disk.
type DirSource struct {
	Dir string
}

func (s DirSource) Fetch(ctx context.Context, lang string) ([]byte, error) {
	if !ValidLang(lang) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLang, lang)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, lang+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceMissing, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Languages lists the languages with a document in the directory.
func (s DirSource) Languages() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		lang := strings.TrimSuffix(e.Name(), ".json")
		if ValidLang(lang) {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs, nil
}

// ReadAll reads every language document in the directory concurrently.
func (s DirSource) ReadAll(ctx context.Context) (map[string][]byte, error) {
	langs, err := s.Languages()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	docs := make(map[string][]byte, len(langs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, lang := range langs {
		g.Go(func() error {
			data, err := s.Fetch(gctx, lang)
			if err != nil {
				return err
			}
			mu.Lock()
			docs[lang] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

/* ----------------------------- Catalog ------------------------------ */

// CatalogSource serves documents held in memory. It is safe for concurrent
// use; documents can be swapped while sessions are reading.
type CatalogSource struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewCatalogSource creates a catalog holding docs.
func NewCatalogSource(docs map[string][]byte) *CatalogSource {
	c := &CatalogSource{docs: make(map[string][]byte, len(docs))}
	for lang, data := range docs {
		c.docs[NormalizeLang(lang)] = data
	}
	return c
}

func (c *CatalogSource) Fetch(ctx context.Context, lang string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	data, ok := c.docs[lang]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceMissing, lang)
	}
	return data, nil
}

// Set stores or replaces the document for lang.
func (c *CatalogSource) Set(lang string, data []byte) {
	c.mu.Lock()
	c.docs[NormalizeLang(lang)] = data
	c.mu.Unlock()
}

// Remove drops the document for lang.
func (c *CatalogSource) Remove(lang string) {
	c.mu.Lock()
	delete(c.docs, NormalizeLang(lang))
	c.mu.Unlock()
}

// Languages lists the languages in the catalog.
func (c *CatalogSource) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	langs := make([]string, 0, len(c.docs))
	for lang := range c.docs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
