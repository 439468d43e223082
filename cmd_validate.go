package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"DialogueWidget/internal/dialogue"
	"DialogueWidget/internal/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate [file-or-dir...]",
	Short: "Check scenario documents",
	Long: `Parses each <lang>.json and reports problems. Documents that fail to
parse are errors. Choices pointing at missing nodes and nodes nobody can reach
are warnings, or errors with --strict.

With no arguments the built-in scenarios are checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd.Context(), cmd.OutOrStdout(), args, validateStrict)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "treat structural warnings as errors")
}

type validation struct {
	name   string
	nodes  int
	err    error
	report *dialogue.LintReport
}

func runValidate(ctx context.Context, w io.Writer, paths []string, strict bool) error {
	docs, err := collectDocuments(paths)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no scenario documents found")
	}

	results := make([]validation, len(docs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, doc := range docs {
		g.Go(func() error {
			results[i] = validateDocument(doc)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", r.name, r.err)
			continue
		case r.report.Clean():
			fmt.Fprintf(w, "ok    %s (%d nodes)\n", r.name, r.nodes)
			continue
		}

		if strict {
			failed++
			fmt.Fprintf(w, "FAIL  %s (%d nodes)\n", r.name, r.nodes)
		} else {
			fmt.Fprintf(w, "warn  %s (%d nodes)\n", r.name, r.nodes)
		}
		for _, l := range r.report.Dangling {
			fmt.Fprintf(w, "      choice %s.%s -> missing node %s\n", l.From, l.Choice, l.To)
		}
		for _, id := range r.report.Unreachable {
			fmt.Fprintf(w, "      node %s is unreachable\n", id)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios invalid", failed, len(results))
	}
	return nil
}

type document struct {
	name string
	lang string
	data []byte
	err  error
}

// collectDocuments expands directories to their *.json files. With no paths
// it returns the built-in scenarios.
func collectDocuments(paths []string) ([]document, error) {
	if len(paths) == 0 {
		seeds, err := server.SeedDocuments()
		if err != nil {
			return nil, err
		}
		var docs []document
		for lang, data := range seeds {
			docs = append(docs, document{name: "builtin:" + lang, lang: lang, data: data})
		}
		sort.Slice(docs, func(i, j int) bool { return docs[i].name < docs[j].name })
		return docs, nil
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	docs := make([]document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		docs = append(docs, document{
			name: f,
			lang: strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)),
			data: data,
			err:  err,
		})
	}
	return docs, nil
}

func validateDocument(doc document) validation {
	v := validation{name: doc.name}
	if doc.err != nil {
		v.err = doc.err
		return v
	}
	s, err := dialogue.Parse(doc.lang, doc.data)
	if err != nil {
		v.err = err
		return v
	}
	v.nodes = s.Len()
	v.report = dialogue.Lint(s)
	return v
}
