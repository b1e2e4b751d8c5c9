package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ppiankov/mastodon2memos/internal/mastodon"
	"github.com/ppiankov/mastodon2memos/internal/memos"
	"github.com/ppiankov/mastodon2memos/internal/privacy"
	"github.com/ppiankov/mastodon2memos/internal/store"
)

const (
	DefaultTriggerTag        = "memos"
	DefaultPageSize          = 5
	DefaultInterval          = 60 * time.Second
	DefaultRateLimitCooldown = 5 * time.Minute
)

// Marker actions taken on the source once a note is created.
const (
	MarkerUnreblog = "unreblog"
	MarkerDelete   = "delete"
)

// Source is the timeline the relay reads from and reacts on.
type Source interface {
	Searcher
	AccountStatuses(ctx context.Context, accountID string, limit int) ([]mastodon.Status, error)
	Unreblog(ctx context.Context, id string) error
	DeleteStatus(ctx context.Context, id string) error
}

// Sink receives the assembled notes.
type Sink interface {
	CreateMemo(ctx context.Context, content string, visibility memos.Visibility) (*memos.Memo, error)
}

// Journal records each delivery attempt.
type Journal interface {
	RecordDelivery(ctx context.Context, in store.DeliveryInput) (store.Delivery, error)
}

// Options tune the poll loop. Zero values fall back to the defaults above.
type Options struct {
	AccountID         string
	TriggerTag        string
	PageSize          int
	Visibility        memos.Visibility
	Tags              []string
	Interval          time.Duration
	RateLimitCooldown time.Duration
	MaxTicks          int  // stop Run after this many ticks; 0 runs until cancelled
	DryRun            bool // assemble and log notes without sending or marking
	Redactor          *privacy.Redactor
}

// TickResult summarizes one poll iteration.
type TickResult struct {
	Fetched     int
	Matched     int
	Attempted   int
	Failed      int
	Delivered   string // ID of the status relayed this tick, if any
	RateLimited bool
	Err         error // timeline fetch error
}

// Dispatcher runs the poll loop. It processes at most one successful
// delivery per tick and is not safe for concurrent use.
type Dispatcher struct {
	source   Source
	sink     Sink
	journal  Journal
	resolver *Resolver
	opts     Options
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewDispatcher validates opts and wires the pipeline.
func NewDispatcher(src Source, sink Sink, opts Options, logger *slog.Logger) (*Dispatcher, error) {
	if src == nil {
		return nil, errors.New("relay: source is required")
	}
	if sink == nil {
		return nil, errors.New("relay: sink is required")
	}
	if opts.AccountID == "" {
		return nil, errors.New("relay: account id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	applyDefaults(&opts)

	return &Dispatcher{
		source:   src,
		sink:     sink,
		resolver: NewResolver(src, logger),
		opts:     opts,
		logger:   logger,
		sleep:    sleepContext,
	}, nil
}

func applyDefaults(opts *Options) {
	if opts.TriggerTag == "" {
		opts.TriggerTag = DefaultTriggerTag
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Visibility == "" {
		opts.Visibility = memos.Private
	}
	if opts.Tags == nil {
		opts.Tags = DefaultTags
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RateLimitCooldown <= 0 {
		opts.RateLimitCooldown = DefaultRateLimitCooldown
	}
}

// SetJournal enables delivery journaling.
func (d *Dispatcher) SetJournal(j Journal) {
	d.journal = j
}

// Render resolves a status and assembles its note without sending anything.
func (d *Dispatcher) Render(ctx context.Context, st *mastodon.Status) (ResolvedContent, string) {
	rc := d.resolver.Resolve(ctx, st)
	return rc, Build(rc, d.opts.Tags)
}

// Run ticks until ctx is cancelled or MaxTicks is reached. A rate-limited
// tick is followed by the cooldown instead of the regular interval.
// Returns ctx.Err() when cancelled and nil when the tick limit stops it.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("relay started",
		"account", d.opts.AccountID,
		"trigger", d.opts.TriggerTag,
		"interval", d.opts.Interval,
		"dry_run", d.opts.DryRun,
	)

	for tick := 1; ; tick++ {
		res := d.Tick(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.opts.MaxTicks > 0 && tick >= d.opts.MaxTicks {
			return nil
		}

		wait := d.opts.Interval
		if res.RateLimited {
			wait = d.opts.RateLimitCooldown
		}
		d.logger.Debug("sleeping", "tick", tick, "for", wait)
		if err := d.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Tick runs one Fetching, Filtering, PerPostProcessing pass. Errors are
// logged and reflected in the result, never returned.
func (d *Dispatcher) Tick(ctx context.Context) TickResult {
	var res TickResult

	statuses, err := d.source.AccountStatuses(ctx, d.opts.AccountID, d.opts.PageSize)
	if err != nil {
		d.logger.Warn("fetch timeline failed", "err", d.opts.Redactor.Error(err))
		res.Err = err
		return res
	}
	res.Fetched = len(statuses)

	for i := range statuses {
		st := &statuses[i]
		if !st.HasTag(d.opts.TriggerTag) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		res.Matched++
		d.logger.Info("found trigger post", "status", st.ID, "reblog", st.IsReblog())

		rc, payload := d.Render(ctx, st)

		if d.opts.DryRun {
			d.logger.Info("dry run, note not sent",
				"status", st.ID,
				"resolution", rc.Resolution,
				"payload", payload,
			)
			continue
		}

		res.Attempted++
		memo, err := d.sink.CreateMemo(ctx, payload, d.opts.Visibility)
		if err != nil {
			if memos.IsRateLimited(err) {
				res.RateLimited = true
				d.record(ctx, st, rc, "", "", store.OutcomeRateLimited, err)
				d.logger.Warn("sink rate limited, cooling down",
					"status", st.ID,
					"cooldown", d.opts.RateLimitCooldown,
				)
				// Unlike other send failures, stop the tick: the cooldown applies to the whole sink.
				break
			}
			res.Failed++
			d.record(ctx, st, rc, "", "", store.OutcomeSendFailed, err)
			d.logger.Warn("send failed, will retry next poll", "status", st.ID, "err", d.opts.Redactor.Error(err))
			continue
		}

		memoName := ""
		if memo != nil {
			memoName = memo.Name
		}
		d.logger.Info("note created", "status", st.ID, "memo", memoName, "resolution", rc.Resolution)

		marker, err := d.markHandled(ctx, st)
		if err != nil {
			d.record(ctx, st, rc, memoName, marker, store.OutcomeMarkerFailed, err)
			d.logger.Error("marker action failed, post may be relayed again",
				"status", st.ID,
				"marker", marker,
				"err", d.opts.Redactor.Error(err),
			)
		} else {
			d.record(ctx, st, rc, memoName, marker, store.OutcomeDelivered, nil)
			d.logger.Info("post marked as handled", "status", st.ID, "marker", marker)
		}

		res.Delivered = st.ID
		break
	}

	return res
}

// MarkerFor returns the action that hides a handled status from the next poll.
func MarkerFor(st *mastodon.Status) string {
	if st.IsReblog() {
		return MarkerUnreblog
	}
	return MarkerDelete
}

func (d *Dispatcher) markHandled(ctx context.Context, st *mastodon.Status) (string, error) {
	marker := MarkerFor(st)
	if marker == MarkerUnreblog {
		return marker, d.source.Unreblog(ctx, st.ID)
	}
	return marker, d.source.DeleteStatus(ctx, st.ID)
}

func (d *Dispatcher) record(ctx context.Context, st *mastodon.Status, rc ResolvedContent, memoName, marker, outcome string, cause error) {
	if d.journal == nil {
		return
	}
	in := store.DeliveryInput{
		StatusID:        st.ID,
		ContentStatusID: rc.StatusID,
		Resolution:      string(rc.Resolution),
		Author:          rc.AuthorHandle,
		SourceURL:       rc.SourceURL,
		MemoName:        memoName,
		Marker:          marker,
		Outcome:         outcome,
		Error:           d.opts.Redactor.Error(cause),
		CreatedAt:       time.Now(),
	}
	if _, err := d.journal.RecordDelivery(ctx, in); err != nil {
		d.logger.Warn("journal write failed", "status", st.ID, "err", err)
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
