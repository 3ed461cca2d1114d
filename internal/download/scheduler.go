package download

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/handiism/audiobatch/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the worker pool size used when none is given.
const DefaultConcurrency = 3

// Resolver expands one reference into item descriptors.
// *source.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*model.Resolution, error)
}

// ItemFetcher produces exactly one outcome per call. *Fetcher implements it.
type ItemFetcher interface {
	Fetch(ctx context.Context, index int, item model.ItemDescriptor, sink model.ProgressSink) model.Outcome
}

// Listener observes a running batch.
//
// Planned is called once with the flat work list before any item starts.
// Report is called from worker goroutines. Finished is called from a single
// goroutine, once per item, in completion order.
type Listener interface {
	model.ProgressSink
	Planned(items []model.ItemDescriptor)
	Finished(outcome model.Outcome)
}

// NopListener ignores every notification. Embed it to implement only the
// hooks you need.
type NopListener struct{}

func (NopListener) Planned([]model.ItemDescriptor) {}
func (NopListener) Report(model.ProgressEvent)     {}
func (NopListener) Finished(model.Outcome)         {}

// Plan is the resolved form of a batch input.
type Plan struct {
	// Resolutions holds one entry per reference that resolved, in input order.
	Resolutions []*model.Resolution

	// Items is the flat work list.
	Items []model.ItemDescriptor

	// Failures lists references that produced nothing and container entries
	// that could not be fetched, in input order.
	Failures []model.ResolutionFailure
}

// Scheduler resolves references and fans the resulting items out to a
// bounded worker pool.
//
// Example:
//
//	s := download.NewScheduler(resolver, fetcher, download.WithListener(ui))
//	result, err := s.Run(ctx, refs, 3)
//	if errors.Is(err, download.ErrNoReferences) {
//	    return err
//	}
//	fmt.Printf("%d ok, %d failed\n", len(result.Successes), len(result.Failures))
type Scheduler struct {
	resolver Resolver
	fetcher  ItemFetcher
	listener Listener
	logger   *slog.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithListener registers the batch listener.
func WithListener(l Listener) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.listener = l
		}
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(resolver Resolver, fetcher ItemFetcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		resolver: resolver,
		fetcher:  fetcher,
		listener: NopListener{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan resolves refs sequentially, in input order.
//
// A reference that fails to resolve contributes one resolution failure and
// no items. Container entries the resolver skipped contribute one failure
// each. ErrNoReferences is the only error.
func (s *Scheduler) Plan(ctx context.Context, refs []string) (*Plan, error) {
	if len(refs) == 0 {
		return nil, ErrNoReferences
	}

	plan := &Plan{}
	for _, ref := range refs {
		res, err := s.resolver.Resolve(ctx, ref)
		if err != nil {
			s.logger.Warn("reference failed to resolve", "ref", ref, "error", err)
			plan.Failures = append(plan.Failures, model.ResolutionFailure{
				Reference: ref,
				Title:     ref,
				Reason:    err.Error(),
			})
			continue
		}

		plan.Resolutions = append(plan.Resolutions, res)
		plan.Items = append(plan.Items, res.Items...)
		for _, skipped := range res.Skipped {
			plan.Failures = append(plan.Failures, model.ResolutionFailure{
				Reference: ref,
				Title:     skipped.Title,
				Reason:    skipped.Reason,
			})
		}

		if res.IsContainer {
			s.logger.Info("resolved container",
				"ref", ref,
				"title", res.ContainerTitle,
				"items", len(res.Items),
				"skipped", len(res.Skipped),
			)
		} else {
			s.logger.Debug("resolved item", "ref", ref, "title", firstTitle(res))
		}
	}
	return plan, nil
}

// Run resolves refs and downloads every resulting item with at most
// concurrency workers (DefaultConcurrency when concurrency < 1).
//
// Run returns once every item has an outcome. Items that never started
// because ctx was cancelled still get a failure. ErrNoReferences is the only
// error; per-item and per-reference problems are reported in the result.
func (s *Scheduler) Run(ctx context.Context, refs []string, concurrency int) (*model.BatchResult, error) {
	plan, err := s.Plan(ctx, refs)
	if err != nil {
		return nil, err
	}
	result := s.Execute(ctx, plan.Items, concurrency)
	result.ResolutionFailures = plan.Failures
	return result, nil
}

// Execute runs an already resolved work list. See Run.
func (s *Scheduler) Execute(ctx context.Context, items []model.ItemDescriptor, concurrency int) *model.BatchResult {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	s.listener.Planned(items)

	result := &model.BatchResult{}
	outcomes := make(chan model.Outcome)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for o := range outcomes {
			result.Add(o)
			s.listener.Finished(o)
		}
	}()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			outcomes <- model.Failure(i, item, cancelledReason(err), 0)
			continue
		}
		g.Go(func() error {
			outcomes <- s.fetcher.Fetch(ctx, i, item, s.listener)
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)
	<-collected

	s.logger.Info("batch finished",
		"items", len(items),
		"succeeded", len(result.Successes),
		"failed", len(result.Failures),
	)
	return result
}

func firstTitle(res *model.Resolution) string {
	if len(res.Items) == 0 {
		return ""
	}
	return strings.TrimSpace(res.Items[0].Title)
}
