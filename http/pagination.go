package http

import (
	"context"
	"iter"
	"log/slog"
)

// DefaultPageSize is the page size requested when none is configured.
const DefaultPageSize = 50

// DefaultItemCeiling bounds how many items a single listing yields.
const DefaultItemCeiling = 1000

// Style is the continuation scheme a listing endpoint uses.
type Style int

const (
	// StyleCursor continues with an opaque nextPageToken.
	StyleCursor Style = iota
	// StyleOffset continues with startAt/maxResults.
	StyleOffset
)

// PageRequest is the continuation state passed to a fetch.
type PageRequest struct {
	Token      string
	StartAt    int
	MaxResults int
}

// Page is one page of a listing as reported by the source.
type Page[T any] struct {
	Items         []T
	NextPageToken string
	IsLast        bool

	// Total is the server-reported total, or 0 when not reported.
	Total int
}

// PageFetcher fetches one page.
type PageFetcher[T any] func(ctx context.Context, req PageRequest) (Page[T], error)

// PaginatorConfig configures a Paginator.
type PaginatorConfig struct {
	Style    Style
	PageSize int

	// Ceiling is the maximum number of items yielded. Zero means
	// DefaultItemCeiling; a negative value disables the ceiling.
	Ceiling int

	// Name labels warnings (e.g., the endpoint path).
	Name   string
	Logger *slog.Logger
}

// Paginator turns a page source into a lazy item sequence. A Paginator
// holds no iteration state; each Iterate call starts from the first page.
type Paginator[T any] struct {
	fetch PageFetcher[T]
	cfg   PaginatorConfig
}

// NewPaginator creates a paginator over fetch.
func NewPaginator[T any](fetch PageFetcher[T], cfg PaginatorConfig) *Paginator[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Ceiling == 0 {
		cfg.Ceiling = DefaultItemCeiling
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Paginator[T]{fetch: fetch, cfg: cfg}
}

// Iterate returns a fresh iterator positioned before the first item.
func (p *Paginator[T]) Iterate() *PageIterator[T] {
	it := &PageIterator[T]{p: p, total: -1}
	it.Reset()
	return it
}

// Seq returns the listing as a range-over-func sequence. Iteration stops
// after the first error, which is yielded with a zero item.
func (p *Paginator[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it := p.Iterate()
		for {
			item, ok, err := it.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(item, nil) {
				return
			}
		}
	}
}

// All collects the whole listing, up to the ceiling.
func (p *Paginator[T]) All(ctx context.Context) ([]T, error) {
	return p.Iterate().All(ctx)
}

// PageIterator walks a listing page by page, fetching lazily. Pages are
// fetched strictly in order. A PageIterator is not safe for concurrent use.
type PageIterator[T any] struct {
	p         *Paginator[T]
	req       PageRequest
	buffer    []T
	done      bool
	err       error
	total     int
	fetched   int
	pages     int
	truncated bool
	seen      map[string]struct{}
}

// Next returns the next item from the iterator.
// Returns the item, true if an item was returned, and any error.
// When iteration is complete, returns (zero, false, nil).
func (it *PageIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if it.err != nil {
		return zero, false, it.err
	}

	if ceiling := it.p.cfg.Ceiling; ceiling > 0 && it.fetched >= ceiling {
		if !it.truncated && (len(it.buffer) > 0 || !it.done) {
			it.truncate("item ceiling reached", "ceiling", ceiling)
		}
		it.buffer = nil
		it.done = true
		return zero, false, nil
	}

	for len(it.buffer) == 0 && !it.done {
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return zero, false, err
		}
	}

	if len(it.buffer) == 0 {
		return zero, false, nil
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]
	it.fetched++

	return item, true, nil
}

func (it *PageIterator[T]) fetchPage(ctx context.Context) error {
	if ctx.Err() != nil {
		return cancelled(ctx.Err())
	}

	page, err := it.p.fetch(ctx, it.req)
	if err != nil {
		return err
	}
	it.pages++
	it.buffer = page.Items
	if page.Total > 0 {
		it.total = page.Total
	}

	switch it.p.cfg.Style {
	case StyleCursor:
		it.done = page.IsLast || page.NextPageToken == ""
		if !it.done {
			if _, repeat := it.seen[page.NextPageToken]; repeat {
				it.done = true
				it.truncate("cursor repeated", "token", page.NextPageToken)
			}
			it.seen[page.NextPageToken] = struct{}{}
			it.req.Token = page.NextPageToken
		}
	case StyleOffset:
		n := len(page.Items)
		// Servers may cap maxResults below the request, so a short page
		// only ends the listing when no total was reported.
		if page.Total > 0 {
			it.done = page.IsLast || it.req.StartAt+n >= page.Total
		} else {
			it.done = page.IsLast || n < it.req.MaxResults
		}
		it.req.StartAt += n
	}

	if len(page.Items) == 0 && !it.done {
		it.done = true
		it.truncate("empty page before end of listing", "page", it.pages)
	}
	return nil
}

func (it *PageIterator[T]) truncate(reason string, args ...any) {
	it.truncated = true
	paginationTruncations.Inc()
	attrs := append([]any{"listing", it.p.cfg.Name, "fetched", it.fetched, "pages", it.pages}, args...)
	it.p.cfg.Logger.Warn("pagination stopped early: "+reason, attrs...)
}

// All collects all remaining items from the iterator into a slice.
func (it *PageIterator[T]) All(ctx context.Context) ([]T, error) {
	all := []T{}
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, item)
	}
	return all, nil
}

// Err returns any error that occurred during iteration.
func (it *PageIterator[T]) Err() error {
	return it.err
}

// Total returns the total number of items if the source reported one,
// -1 otherwise.
func (it *PageIterator[T]) Total() int {
	return it.total
}

// Fetched returns the number of items yielded so far.
func (it *PageIterator[T]) Fetched() int {
	return it.fetched
}

// Pages returns the number of pages fetched so far.
func (it *PageIterator[T]) Pages() int {
	return it.pages
}

// Truncated reports whether iteration stopped before the source was
// exhausted (item ceiling, repeated cursor, or empty non-final page).
func (it *PageIterator[T]) Truncated() bool {
	return it.truncated
}

// Reset rewinds the iterator to the first page.
// Any buffered items are discarded.
func (it *PageIterator[T]) Reset() {
	it.req = PageRequest{MaxResults: it.p.cfg.PageSize}
	it.buffer = nil
	it.done = false
	it.err = nil
	it.total = -1
	it.fetched = 0
	it.pages = 0
	it.truncated = false
	it.seen = make(map[string]struct{})
}

// Take returns up to n items from the iterator.
func (it *PageIterator[T]) Take(ctx context.Context, n int) ([]T, error) {
	var items []T
	for len(items) < n {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		items = append(items, item)
	}
	return items, nil
}

// ForEach calls fn for each item in the iterator.
// If fn returns an error, iteration stops and that error is returned.
func (it *PageIterator[T]) ForEach(ctx context.Context, fn func(T) error) error {
	for {
		item, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}
