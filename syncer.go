package nextdns

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/xid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// ErrNoDomains is returned when a source yields nothing to sync.
// Reconciling against an empty set would clear the whole list, so it must be asked for with SyncAllowEmpty.
var ErrNoDomains = errors.New("no domains found in source")

// Syncer reconciles a profile list with a desired set of domains.
type Syncer struct {
	service     ListService
	kind        ListKind
	format      Format
	concurrency int
	dryRun      bool
	allowEmpty  bool
	logger      logrus.FieldLogger
}

// NewSyncer returns a Syncer for the denylist unless SyncList says otherwise.
func NewSyncer(service ListService, options ...SyncOption) (*Syncer, error) {
	if service == nil {
		return nil, errors.New("nextdns.NewSyncer: service cannot be nil")
	}
	s := &Syncer{
		service:     service,
		kind:        Denylist,
		format:      FormatPlain,
		concurrency: 1,
		logger:      discard,
	}
	for i, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("nextdns.NewSyncer: option %d returned an error: %s", i, err)
		}
	}
	return s, nil
}

// SyncOption configures a Syncer.
type SyncOption func(*Syncer) error

// SyncList selects the profile list to reconcile.
func SyncList(kind ListKind) SyncOption {
	return func(s *Syncer) error {
		if _, err := ParseListKind(string(kind)); err != nil {
			return err
		}
		s.kind = kind
		return nil
	}
}

// SyncFormat sets the line syntax used when reading a Source.
func SyncFormat(format Format) SyncOption {
	return func(s *Syncer) error {
		f, err := ParseFormat(string(format))
		if err != nil {
			return err
		}
		s.format = f
		return nil
	}
}

// SyncConcurrency allows up to n calls in flight within a stage.
// Stages always run in order: removals, then activation updates, then additions.
func SyncConcurrency(n int) SyncOption {
	return func(s *Syncer) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1: %d", n)
		}
		s.concurrency = n
		return nil
	}
}

// SyncDryRun makes Sync plan without calling any mutating endpoint.
func SyncDryRun(dryRun bool) SyncOption {
	return func(s *Syncer) error {
		s.dryRun = dryRun
		return nil
	}
}

// SyncAllowEmpty permits an empty desired set, which removes every entry.
func SyncAllowEmpty(allow bool) SyncOption {
	return func(s *Syncer) error {
		s.allowEmpty = allow
		return nil
	}
}

func SyncLogger(logger logrus.FieldLogger) SyncOption {
	return func(s *Syncer) error {
		if logger == nil {
			logger = discard
		}
		s.logger = logger
		return nil
	}
}

// Plan lists the calls needed to make a list match a desired set.
// Every slice is sorted by domain.
type Plan struct {
	Remove    []string
	Update    []Entry
	Add       []Entry
	Unchanged []string
}

// Diff computes the minimal Plan turning current into desired, with every
// entry at the requested activation. Domains present on both sides with a
// matching flag are left alone; a mismatched flag becomes an update.
// Extra spellings of a domain that differ only by case are removed.
func Diff(current []Entry, desired []string, active bool) Plan {
	existing := make(map[string]Entry, len(current))
	var variants []string
	for _, e := range current {
		key := strings.ToLower(e.Domain)
		prev, seen := existing[key]
		if !seen {
			existing[key] = e
			continue
		}
		// one domain listed under several spellings: keep the lowercase one
		if e.Domain == key {
			existing[key] = e
			e = prev
		}
		variants = append(variants, e.Domain)
	}
	want := lo.Uniq(lo.Map(desired, func(d string, _ int) string { return strings.ToLower(d) }))

	toAdd, toRemove := lo.Difference(want, lo.Keys(existing))

	plan := Plan{Remove: variants}
	for _, d := range toRemove {
		// the API path must use the spelling the service returned
		plan.Remove = append(plan.Remove, existing[d].Domain)
	}
	for _, d := range toAdd {
		plan.Add = append(plan.Add, Entry{Domain: d, Active: active})
	}
	for _, d := range want {
		e, found := existing[d]
		if !found {
			continue
		}
		if e.Active != active {
			plan.Update = append(plan.Update, Entry{Domain: e.Domain, Active: active})
			continue
		}
		plan.Unchanged = append(plan.Unchanged, e.Domain)
	}

	slices.Sort(plan.Remove)
	slices.Sort(plan.Unchanged)
	byDomain := func(a, b Entry) int { return strings.Compare(a.Domain, b.Domain) }
	slices.SortFunc(plan.Add, byDomain)
	slices.SortFunc(plan.Update, byDomain)
	return plan
}

// Import reads src and reconciles the profile list with its domains.
// See Sync for the error contract.
func (s *Syncer) Import(ctx context.Context, profileID string, src Source, active bool) (Summary, error) {
	if profileID == "" {
		return Summary{}, ErrEmptyProfileID
	}
	desired, err := s.read(ctx, src)
	if err != nil {
		return Summary{}, err
	}
	return s.Sync(ctx, profileID, desired, active)
}

func (s *Syncer) read(ctx context.Context, src Source) ([]string, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		var sue *SourceUnreadableError
		if errors.As(err, &sue) {
			return nil, err
		}
		return nil, &SourceUnreadableError{Source: src.String(), Err: err}
	}
	defer rc.Close()

	list, err := ParseDomains(rc, s.format)
	if err != nil {
		return nil, &SourceUnreadableError{Source: src.String(), Err: err}
	}
	for _, line := range list.Rejected {
		s.logger.WithField("source", src.String()).Warnf("skipping invalid entry %q", line)
	}
	s.logger.Debugf("read %d domains from %s", len(list.Domains), src)
	return list.Domains, nil
}

// Plan fetches the current list and diffs it against desired without changing anything.
func (s *Syncer) Plan(ctx context.Context, profileID string, desired []string, active bool) (Plan, error) {
	if profileID == "" {
		return Plan{}, ErrEmptyProfileID
	}
	current, err := s.service.Entries(ctx, s.kind, profileID)
	if err != nil {
		return Plan{}, err
	}
	return Diff(current, desired, active), nil
}

// Sync makes the profile list equal desired, with every entry at the requested activation.
//
// Removals are applied first, then activation updates, then additions.
// A failed call does not stop the others; when any fail the returned error is
// a *PartialSyncFailure and the Summary still counts every call that succeeded.
// Errors reading the current list (AuthError, ProfileNotFoundError) are returned before anything changes.
func (s *Syncer) Sync(ctx context.Context, profileID string, desired []string, active bool) (Summary, error) {
	if profileID == "" {
		return Summary{}, ErrEmptyProfileID
	}
	if len(desired) == 0 && !s.allowEmpty {
		return Summary{}, ErrNoDomains
	}
	log := s.logger.WithFields(logrus.Fields{
		"sync":    xid.New().String(),
		"profile": profileID,
		"list":    s.kind,
	})

	plan, err := s.Plan(ctx, profileID, desired, active)
	if err != nil {
		return Summary{}, err
	}
	log.Debugf("plan: remove=%d update=%d add=%d unchanged=%d",
		len(plan.Remove), len(plan.Update), len(plan.Add), len(plan.Unchanged))

	summary := Summary{Unchanged: len(plan.Unchanged)}
	if s.dryRun {
		summary.Removed, summary.Updated, summary.Added = len(plan.Remove), len(plan.Update), len(plan.Add)
		return summary, nil
	}

	var failures []Failure
	summary.Removed, failures = s.stage(ctx, log, OpRemove, plan.Remove, func(ctx context.Context, d string) error {
		return s.service.RemoveEntry(ctx, s.kind, profileID, d)
	})
	summary.Failures = append(summary.Failures, failures...)

	summary.Updated, failures = s.stage(ctx, log, OpUpdate, entryDomains(plan.Update), func(ctx context.Context, d string) error {
		return s.service.SetEntryActive(ctx, s.kind, profileID, d, active)
	})
	summary.Failures = append(summary.Failures, failures...)

	summary.Added, failures = s.stage(ctx, log, OpAdd, entryDomains(plan.Add), func(ctx context.Context, d string) error {
		return s.service.AddEntry(ctx, s.kind, profileID, d, active)
	})
	summary.Failures = append(summary.Failures, failures...)

	log.Infof("sync finished: %s", summary)
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("sync interrupted: %w", err)
	}
	if summary.Failed() > 0 {
		return summary, &PartialSyncFailure{Summary: summary}
	}
	return summary, nil
}

// stage runs fn for every domain with at most s.concurrency calls in flight.
// It stops scheduling new calls once ctx is done.
func (s *Syncer) stage(ctx context.Context, log logrus.FieldLogger, op Op, domains []string, fn func(context.Context, string) error) (int, []Failure) {
	if len(domains) == 0 {
		return 0, nil
	}
	var (
		mu        sync.Mutex
		succeeded int
		failures  []Failure
	)
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, d := range domains {
		if ctx.Err() != nil {
			break
		}
		d := d
		p.Go(func() {
			log.Debugf("%s %s...", op, d)
			err := fn(ctx, d)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.WithError(err).Warnf("%s %s failed", op, d)
				failures = append(failures, Failure{Domain: d, Op: op, Err: err})
				return
			}
			succeeded++
		})
	}
	p.Wait()

	slices.SortFunc(failures, func(a, b Failure) int { return strings.Compare(a.Domain, b.Domain) })
	return succeeded, failures
}

func entryDomains(entries []Entry) []string {
	return lo.Map(entries, func(e Entry, _ int) string { return e.Domain })
}
