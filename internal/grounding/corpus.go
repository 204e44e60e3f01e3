package grounding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// StaticCorpus is the last-resort grounding provider: plain-text files from a
// local directory. Files are loaded once, on first use.
type StaticCorpus struct {
	dir string

	once    sync.Once
	loadErr error
	docs    []Passage
}

// NewStaticCorpus creates a StaticCorpus over *.txt and *.md files in dir.
func NewStaticCorpus(dir string) *StaticCorpus {
	return &StaticCorpus{dir: dir}
}

func (c *StaticCorpus) Name() string { return "static-corpus" }

// Fetch returns corpus documents containing any term of the query.
func (c *StaticCorpus) Fetch(ctx context.Context, query string) ([]Passage, error) {
	c.once.Do(func() { c.loadErr = c.load(ctx) })
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(query))
	var matches []Passage
	for _, doc := range c.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Text)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matches = append(matches, doc)
				break
			}
		}
	}
	return matches, nil
}

func (c *StaticCorpus) load(ctx context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading corpus directory %s: %w", c.dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".txt", ".md":
			paths = append(paths, entry.Name())
		}
	}

	docs := make([]Passage, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range paths {
		i, name := i, name
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(c.dir, name))
			if err != nil {
				return fmt.Errorf("reading corpus file %s: %w", name, err)
			}
			docs[i] = Passage{Source: "static-corpus", Title: name, Text: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.docs = docs
	return nil
}
