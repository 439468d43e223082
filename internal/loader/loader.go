// Package loader fetches dialogue scenarios for a language, falling back to a
// default language when the requested one is unavailable.
package loader

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"DialogueWidget/internal/dialogue"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// DefaultFallback is the language tried when the requested one is missing.
	DefaultFallback = "en"
	// CacheName prefixes offline cache keys.
	CacheName = "dialogue-scenarios"

	defaultCacheSize = 16
)

var (
	// ErrLoadFailure is matched by every *LoadError.
	ErrLoadFailure = errors.New("loader: scenario load failed")
	// ErrResourceMissing is returned by sources when a language has no document.
	ErrResourceMissing = errors.New("loader: resource missing")
	// ErrInvalidLang is returned for language codes that can't name a resource.
	ErrInvalidLang = errors.New("loader: invalid language code")
)

var langPattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)

// Source fetches the raw scenario document for a language.
type Source interface {
	Fetch(ctx context.Context, lang string) ([]byte, error)
}

// Attempt records one failed candidate.
type Attempt struct {
	Lang string
	Err  error
}

// LoadError is returned when every candidate language failed.
type LoadError struct {
	Lang     string
	Attempts []Attempt
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load scenario %q", e.Lang)
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Lang, a.Err)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrLoadFailure) hold for any LoadError.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailure
}

// Unwrap exposes the per-attempt causes.
func (e *LoadError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Options tunes a Loader.
type Options struct {
	Fallback     string
	CacheSize    int
	DisableCache bool
	Logger       *zap.Logger
}

// Loader resolves scenarios through a Source. It is safe for concurrent use
// and keeps no per-call state, so repeated calls are independent.
type Loader struct {
	src      Source
	fallback string
	cache    *lru.Cache[string, *dialogue.Scenario]
	log      *zap.Logger
}

// New creates a Loader over src.
func New(src Source, opts Options) (*Loader, error) {
	l := &Loader{
		src:      src,
		fallback: NormalizeLang(opts.Fallback),
		log:      opts.Logger,
	}
	if l.fallback == "" {
		l.fallback = DefaultFallback
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	if !opts.DisableCache {
		size := opts.CacheSize
		if size <= 0 {
			size = defaultCacheSize
		}
		cache, err := lru.New[string, *dialogue.Scenario](size)
		if err != nil {
			return nil, fmt.Errorf("create scenario cache: %w", err)
		}
		l.cache = cache
	}
	return l, nil
}

// Load fetches and validates the scenario for lang. The returned scenario's
// Lang is the language actually served, which may be a fallback.
func (l *Loader) Load(ctx context.Context, lang string) (*dialogue.Scenario, error) {
	requested := NormalizeLang(lang)
	loadErr := &LoadError{Lang: requested}

	for _, candidate := range Candidates(requested, l.fallback) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := l.fetch(ctx, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.log.Debug("scenario candidate failed",
				zap.String("lang", candidate), zap.Error(err))
			loadErr.Attempts = append(loadErr.Attempts, Attempt{Lang: candidate, Err: err})
			continue
		}

		if report := dialogue.Lint(s); !report.Clean() {
			l.log.Warn("scenario has structural problems",
				zap.String("lang", candidate),
				zap.Int("dangling", len(report.Dangling)),
				zap.Int("unreachable", len(report.Unreachable)))
		}
		if candidate != requested {
			l.log.Info("scenario served from fallback language",
				zap.String("requested", requested), zap.String("served", candidate))
		}
		l.remember(requested, s)
		return s, nil
	}

	if len(loadErr.Attempts) == 0 {
		loadErr.Attempts = append(loadErr.Attempts, Attempt{Lang: requested, Err: ErrInvalidLang})
	}
	if cached, ok := l.cached(requested); ok {
		l.log.Warn("serving cached scenario after load failure",
			zap.String("lang", requested), zap.Error(loadErr))
		return cached, nil
	}
	return nil, loadErr
}

func (l *Loader) fetch(ctx context.Context, lang string) (*dialogue.Scenario, error) {
	data, err := l.src.Fetch(ctx, lang)
	if err != nil {
		return nil, err
	}
	return dialogue.Parse(lang, data)
}

func (l *Loader) remember(requested string, s *dialogue.Scenario) {
	if l.cache == nil {
		return
	}
	l.cache.Add(cacheKey(requested), s)
	if s.Lang != requested {
		l.cache.Add(cacheKey(s.Lang), s)
	}
}

func (l *Loader) cached(lang string) (*dialogue.Scenario, bool) {
	if l.cache == nil {
		return nil, false
	}
	return l.cache.Get(cacheKey(lang))
}

func cacheKey(lang string) string {
	return CacheName + ":" + lang
}

// NormalizeLang lowercases a language tag and turns underscores into dashes.
func NormalizeLang(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "_", "-")
}

// ValidLang reports whether lang (already normalized) can name a resource.
func ValidLang(lang string) bool {
	return langPattern.MatchString(lang)
}

// Candidates lists the languages to try for lang, in order: the tag itself,
// its base language, then the fallback. Invalid tags are skipped.
func Candidates(lang, fallback string) []string {
	var out []string
	add := func(l string) {
		if !ValidLang(l) {
			return
		}
		for _, existing := range out {
			if existing == l {
				return
			}
		}
		out = append(out, l)
	}

	lang = NormalizeLang(lang)
	add(lang)
	if base, _, found := strings.Cut(lang, "-"); found {
		add(base)
	}
	add(NormalizeLang(fallback))
	return out
}
