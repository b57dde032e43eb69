package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discog/internal/shared"
)

const (
	DefaultMaxPages    = 1000
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 8 * time.Second
)

// ErrTooManyPages is returned when a collection spans more pages than allowed.
var ErrTooManyPages = errors.New("page limit exceeded")

// Page is one server response of a cursor-paginated collection.
type Page[T any] struct {
	Items []T
	Next  string // Opaque cursor for the following page; empty on the last page
	Total int    // Server-reported size of the whole collection
}

// FetchFunc retrieves the first page of a collection.
type FetchFunc[T any] func(ctx context.Context) (Page[T], error)

// FollowFunc retrieves the page a cursor points at.
type FollowFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Source pairs the first-page fetch with the cursor-follow operation of one collection.
type Source[T any] struct {
	Fetch  FetchFunc[T]
	Follow FollowFunc[T]
}

// Unwrap adapts a fetch returning a nested response into a [FetchFunc] by selecting the paginated container with
// root.
func Unwrap[R any, T any](fetch func(ctx context.Context) (R, error), root func(R) Page[T]) FetchFunc[T] {
	return func(ctx context.Context) (Page[T], error) {
		resp, err := fetch(ctx)
		if err != nil {
			return Page[T]{}, err
		}
		return root(resp), nil
	}
}

type options struct {
	maxPages    int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures [Collect] and [Each].
type Option func(*options)

// WithMaxPages bounds the number of pages fetched. Non-positive values disable the bound.
func WithMaxPages(n int) Option {
	return func(o *options) { o.maxPages = n }
}

// WithRetry sets the number of attempts per page and the backoff window for transient failures.
func WithRetry(attempts int, base, max time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.maxAttempts = attempts
		}
		if base > 0 {
			o.baseDelay = base
		}
		if max > 0 {
			o.maxDelay = max
		}
	}
}

// WithLogger logs retries and page progress at debug level.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

func newOptions(opts []Option) *options {
	o := &options{
		maxPages:    DefaultMaxPages,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, shared.ErrTransient)
}

// Collect fetches every page of src and returns all items in server order.
func Collect[T any](ctx context.Context, src Source[T], opts ...Option) ([]T, error) {
	var items []T
	err := Each(ctx, src, func(p Page[T]) error {
		if items == nil && p.Total > 0 {
			items = make([]T, 0, p.Total)
		}
		items = append(items, p.Items...)
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Each walks the pages of src and hands each one to fn, stopping at the first error.
func Each[T any](ctx context.Context, src Source[T], fn func(Page[T]) error, opts ...Option) error {
	if src.Fetch == nil {
		return fmt.Errorf("%w: pager source has no fetch function", shared.ErrInvalidArgument)
	}

	o := newOptions(opts)

	page, err := retry(ctx, o, 1, func(ctx context.Context) (Page[T], error) { return src.Fetch(ctx) })
	if err != nil {
		return err
	}

	for n := 1; ; n++ {
		if err := fn(page); err != nil {
			return err
		}

		if page.Next == "" {
			return nil
		}

		if o.maxPages > 0 && n >= o.maxPages {
			return fmt.Errorf("%w: stopped after %d pages", ErrTooManyPages, n)
		}

		if src.Follow == nil {
			return fmt.Errorf("%w: page %d has a cursor but the source cannot follow it", shared.ErrInvalidArgument, n)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		cursor := page.Next
		page, err = retry(ctx, o, n+1, func(ctx context.Context) (Page[T], error) { return src.Follow(ctx, cursor) })
		if err != nil {
			return err
		}
	}
}

// retry calls fn until it succeeds, fails permanently or runs out of attempts.
func retry[T any](ctx context.Context, o *options, pageNum int, fn func(ctx context.Context) (Page[T], error)) (Page[T], error) {
	delay := o.baseDelay

	for attempt := 1; ; attempt++ {
		page, err := fn(ctx)
		if err == nil {
			return page, nil
		}

		if attempt >= o.maxAttempts || !IsTransient(err) {
			return Page[T]{}, fmt.Errorf("page %d: %w", pageNum, err)
		}

		if o.logger != nil {
			o.logger.Debug("retrying page", "page", pageNum, "attempt", attempt, "delay", delay, "error", err)
		}

		if err := o.sleep(ctx, delay); err != nil {
			return Page[T]{}, fmt.Errorf("page %d: %w", pageNum, err)
		}

		delay *= 2
		if delay > o.maxDelay {
			delay = o.maxDelay
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
