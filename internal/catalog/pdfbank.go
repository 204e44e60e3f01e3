package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

// BankPage is one page of extracted case-bank text, used to seed the
// grounding reference corpus.
type BankPage struct {
	Page int
	Text string
}

// ExtractCaseBank pulls plain text out of a PDF case bank, one entry per
// non-empty page. Pages are extracted concurrently with bounded parallelism.
func ExtractCaseBank(ctx context.Context, path string) ([]BankPage, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening case bank %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, nil
	}

	texts := make([]string, total)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency; extraction is CPU-heavy per page.

	for i := 1; i <= total; i++ {
		i := i
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			page := r.Page(i)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("extracting page %d: %w", i, err)
			}
			texts[i-1] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pages []BankPage
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, BankPage{Page: i + 1, Text: text})
	}
	return pages, nil
}
