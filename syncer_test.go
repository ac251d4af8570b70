package nextdns_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/Travis-Britz/nextdns"
	"github.com/Travis-Britz/nextdns/internal/nextdnstest"
)

const profile = "abc123"

func active(domains ...string) []nextdns.Entry {
	return entries(true, domains...)
}

func inactive(domains ...string) []nextdns.Entry {
	return entries(false, domains...)
}

func entries(isActive bool, domains ...string) []nextdns.Entry {
	out := []nextdns.Entry{}
	for _, d := range domains {
		out = append(out, nextdns.Entry{Domain: d, Active: isActive})
	}
	return out
}

func setup(t *testing.T, current ...nextdns.Entry) (*nextdnstest.Server, *nextdns.Client) {
	t.Helper()
	srv := nextdnstest.NewServer(t, testKey)
	srv.AddProfile(profile, "Home")
	srv.SetEntries(profile, nextdns.Denylist, current...)
	return srv, newTestClient(t, srv.URL)
}

func newSyncer(t *testing.T, svc nextdns.ListService, options ...nextdns.SyncOption) *nextdns.Syncer {
	t.Helper()
	s, err := nextdns.NewSyncer(svc, options...)
	if err != nil {
		t.Fatalf("error creating syncer: %s", err)
	}
	return s
}

func sortedEntries(e []nextdns.Entry) []nextdns.Entry {
	out := append([]nextdns.Entry{}, e...)
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

func TestDiff(t *testing.T) {
	plan := nextdns.Diff(active("good.com", "old.com"), []string{"good.com", "new.com"}, true)

	expected := nextdns.Plan{
		Remove:    []string{"old.com"},
		Add:       active("new.com"),
		Unchanged: []string{"good.com"},
	}
	if !reflect.DeepEqual(expected, plan) {
		t.Fatalf("Expected %+v; got %+v", expected, plan)
	}
}

func TestDiffActivation(t *testing.T) {
	current := append(active("a.com"), inactive("b.com")...)
	plan := nextdns.Diff(current, []string{"a.com", "b.com", "B.com"}, false)

	if expected, got := inactive("a.com"), plan.Update; !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected updates %+v; got %+v", expected, got)
	}
	if expected, got := []string{"b.com"}, plan.Unchanged; !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected unchanged %q; got %q", expected, got)
	}
	if len(plan.Add) != 0 || len(plan.Remove) != 0 {
		t.Fatalf("Expected no adds or removes; got %+v", plan)
	}
}

func TestDiffCaseVariants(t *testing.T) {
	plan := nextdns.Diff(active("A.com", "a.com", "Old.com", "OLD.com"), []string{"a.com"}, true)

	expected := nextdns.Plan{
		Remove:    []string{"A.com", "OLD.com", "Old.com"},
		Unchanged: []string{"a.com"},
	}
	if !reflect.DeepEqual(expected, plan) {
		t.Fatalf("Expected %+v; got %+v", expected, plan)
	}
}

func TestSyncRemovesCaseVariants(t *testing.T) {
	srv, c := setup(t, active("A.com", "a.com", "b.com")...)
	s := newSyncer(t, c)

	summary, err := s.Sync(context.Background(), profile, []string{"a.com", "b.com"}, true)
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if expected := (nextdns.Summary{Removed: 1, Unchanged: 2}); !reflect.DeepEqual(expected, summary) {
		t.Fatalf("Expected %+v; got %+v", expected, summary)
	}
	if expected, got := active("a.com", "b.com"), srv.Entries(profile, nextdns.Denylist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}
}

func TestSyncExample(t *testing.T) {
	srv, c := setup(t, active("good.com", "old.com")...)
	s := newSyncer(t, c)

	summary, err := s.Import(context.Background(), profile, nextdns.FromDomains("good.com", "new.com"), true)
	if err != nil {
		t.Fatalf("Import failed: %s", err)
	}
	if expected := (nextdns.Summary{Added: 1, Removed: 1, Unchanged: 1}); !reflect.DeepEqual(expected, summary) {
		t.Fatalf("Expected %+v; got %+v", expected, summary)
	}
	if expected, got := active("good.com", "new.com"), srv.Entries(profile, nextdns.Denylist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}

	var methods []string
	for _, c := range srv.Calls("") {
		methods = append(methods, c.Method)
	}
	if expected := []string{http.MethodGet, http.MethodDelete, http.MethodPost}; !reflect.DeepEqual(expected, methods) {
		t.Fatalf("Expected calls %q; got %q", expected, methods)
	}
	if got := srv.Calls(http.MethodDelete)[0].Path; got != "/profiles/abc123/denylist/old.com" {
		t.Fatalf("Unexpected delete path %q", got)
	}
}

func TestSyncIdempotent(t *testing.T) {
	srv, c := setup(t, active("a.com", "stale.com")...)
	s := newSyncer(t, c)
	src := nextdns.FromString("a.com\nB.com\n# comment\nhttps://c.com/\n")

	if _, err := s.Import(context.Background(), profile, src, true); err != nil {
		t.Fatalf("first Import failed: %s", err)
	}
	srv.ResetCalls()

	summary, err := s.Import(context.Background(), profile, src, true)
	if err != nil {
		t.Fatalf("second Import failed: %s", err)
	}
	if summary.Added != 0 || summary.Removed != 0 || summary.Updated != 0 || summary.Unchanged != 3 {
		t.Fatalf("Expected a no-op second run; got %+v", summary)
	}
	if calls := srv.Calls(""); len(calls) != 1 || calls[0].Method != http.MethodGet {
		t.Fatalf("Expected a single read; got %+v", calls)
	}
}

func TestSyncConvergence(t *testing.T) {
	tests := []struct {
		name    string
		current []nextdns.Entry
		desired []string
		active  bool
	}{
		{"empty remote", nil, []string{"a.com", "b.com"}, true},
		{"disjoint", active("x.com", "y.com"), []string{"a.com"}, true},
		{"superset remote", active("a.com", "b.com", "c.com"), []string{"b.com"}, true},
		{"same set", active("a.com", "b.com"), []string{"b.com", "a.com"}, true},
		{"all inactive", active("a.com", "b.com"), []string{"a.com", "b.com", "c.com"}, false},
		{"mixed activation", append(active("a.com"), inactive("b.com", "z.com")...), []string{"a.com", "b.com", "c.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := setup(t, tt.current...)
			s := newSyncer(t, c)

			if _, err := s.Sync(context.Background(), profile, tt.desired, tt.active); err != nil {
				t.Fatalf("Sync failed: %s", err)
			}

			remote, err := c.Entries(context.Background(), nextdns.Denylist, profile)
			if err != nil {
				t.Fatalf("Entries failed: %s", err)
			}
			want := sortedEntries(entries(tt.active, tt.desired...))
			if got := sortedEntries(remote); !reflect.DeepEqual(want, got) {
				t.Fatalf("Expected %+v; got %+v", want, got)
			}
			if got := srv.Entries(profile, nextdns.Denylist); len(got) != len(want) {
				t.Fatalf("Expected %d entries without duplicates; got %+v", len(want), got)
			}
		})
	}
}

func TestSyncMinimality(t *testing.T) {
	current := append(active("keep.com", "drop1.com", "drop2.com"), inactive("flip.com")...)
	desired := []string{"keep.com", "flip.com", "new1.com", "new2.com", "new3.com"}
	srv, c := setup(t, current...)
	s := newSyncer(t, c)

	summary, err := s.Sync(context.Background(), profile, desired, true)
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if expected, got := 3, len(srv.Calls(http.MethodPost)); expected != got {
		t.Fatalf("Expected %d add calls; got %d", expected, got)
	}
	if expected, got := 2, len(srv.Calls(http.MethodDelete)); expected != got {
		t.Fatalf("Expected %d remove calls; got %d", expected, got)
	}
	if expected, got := 1, len(srv.Calls(http.MethodPatch)); expected != got {
		t.Fatalf("Expected %d update calls; got %d", expected, got)
	}
	if expected := (nextdns.Summary{Added: 3, Removed: 2, Updated: 1, Unchanged: 1}); !reflect.DeepEqual(expected, summary) {
		t.Fatalf("Expected %+v; got %+v", expected, summary)
	}
}

func TestSyncPartialFailure(t *testing.T) {
	srv, c := setup(t, active("old1.com", "old2.com")...)
	srv.FailOn("b.com", http.StatusBadRequest)
	s := newSyncer(t, c)

	summary, err := s.Sync(context.Background(), profile, []string{"a.com", "b.com", "c.com"}, true)
	var psf *nextdns.PartialSyncFailure
	if !errors.As(err, &psf) {
		t.Fatalf("Expected *PartialSyncFailure; got %v", err)
	}
	if !reflect.DeepEqual(psf.Summary, summary) {
		t.Fatalf("Expected the error to carry the summary")
	}
	if summary.Added != 2 || summary.Removed != 2 || summary.Failed() != 1 {
		t.Fatalf("Unexpected summary %+v", summary)
	}
	f := summary.Failures[0]
	if f.Domain != "b.com" || f.Op != nextdns.OpAdd {
		t.Fatalf("Expected failed add of b.com; got %+v", f)
	}
	var rse *nextdns.RemoteServiceError
	if !errors.As(err, &rse) || rse.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected the cause to be reachable through the error; got %v", err)
	}
	if expected, got := active("a.com", "c.com"), srv.Entries(profile, nextdns.Denylist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}
}

func TestSyncRemoveFailureDoesNotStopAdds(t *testing.T) {
	srv, c := setup(t, active("stuck.com", "gone.com")...)
	srv.FailOn("stuck.com", http.StatusBadRequest)
	s := newSyncer(t, c)

	summary, err := s.Sync(context.Background(), profile, []string{"new.com"}, true)
	if err == nil {
		t.Fatalf("Expected an error; got err == nil")
	}
	if summary.Removed != 1 || summary.Added != 1 || summary.Failed() != 1 {
		t.Fatalf("Unexpected summary %+v", summary)
	}
	if f := summary.Failures[0]; f.Domain != "stuck.com" || f.Op != nextdns.OpRemove {
		t.Fatalf("Expected failed removal of stuck.com; got %+v", f)
	}
}

func TestSyncInactive(t *testing.T) {
	srv, c := setup(t, active("a.com")...)
	s := newSyncer(t, c)

	summary, err := s.Sync(context.Background(), profile, []string{"a.com", "b.com"}, false)
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if expected := (nextdns.Summary{Added: 1, Updated: 1}); !reflect.DeepEqual(expected, summary) {
		t.Fatalf("Expected %+v; got %+v", expected, summary)
	}
	if expected, got := inactive("a.com", "b.com"), srv.Entries(profile, nextdns.Denylist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}
}

func TestSyncDryRun(t *testing.T) {
	srv, c := setup(t, active("good.com", "old.com")...)
	s := newSyncer(t, c, nextdns.SyncDryRun(true))

	summary, err := s.Sync(context.Background(), profile, []string{"good.com", "new.com"}, true)
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if expected := (nextdns.Summary{Added: 1, Removed: 1, Unchanged: 1}); !reflect.DeepEqual(expected, summary) {
		t.Fatalf("Expected %+v; got %+v", expected, summary)
	}
	if calls := srv.Calls(""); len(calls) != 1 {
		t.Fatalf("Expected only the read call; got %+v", calls)
	}
}

func TestSyncEmptySource(t *testing.T) {
	srv, c := setup(t, active("a.com")...)

	_, err := newSyncer(t, c).Import(context.Background(), profile, nextdns.FromString("# nothing\n\n"), true)
	if !errors.Is(err, nextdns.ErrNoDomains) {
		t.Fatalf("Expected ErrNoDomains; got %v", err)
	}
	if calls := srv.Calls(""); len(calls) != 0 {
		t.Fatalf("Expected no API calls; got %+v", calls)
	}

	summary, err := newSyncer(t, c, nextdns.SyncAllowEmpty(true)).Sync(context.Background(), profile, nil, true)
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if summary.Removed != 1 || len(srv.Entries(profile, nextdns.Denylist)) != 0 {
		t.Fatalf("Expected the list to be cleared; got %+v", summary)
	}
}

func TestImportValidation(t *testing.T) {
	srv, c := setup(t)
	s := newSyncer(t, c)

	_, err := s.Import(context.Background(), "", nextdns.FromDomains("a.com"), true)
	if !errors.Is(err, nextdns.ErrEmptyProfileID) {
		t.Fatalf("Expected ErrEmptyProfileID; got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.txt")
	_, err = s.Import(context.Background(), profile, nextdns.OpenSource(missing), true)
	var sue *nextdns.SourceUnreadableError
	if !errors.As(err, &sue) {
		t.Fatalf("Expected *SourceUnreadableError; got %v", err)
	}
	if sue.Source != missing {
		t.Fatalf("Expected source %q; got %q", missing, sue.Source)
	}
	if calls := srv.Calls(""); len(calls) != 0 {
		t.Fatalf("Expected no API calls; got %+v", calls)
	}
}

func TestSyncProfileNotFound(t *testing.T) {
	_, c := setup(t)
	_, err := newSyncer(t, c).Sync(context.Background(), "nope", []string{"a.com"}, true)
	var pnf *nextdns.ProfileNotFoundError
	if !errors.As(err, &pnf) {
		t.Fatalf("Expected *ProfileNotFoundError; got %v", err)
	}
}

func TestSyncAuthError(t *testing.T) {
	srv, _ := setup(t, active("a.com")...)
	c, err := nextdns.New(nextdns.UsingAPIKey("expired"), nextdns.WithBaseURL(srv.URL), nextdns.WithRetries(0))
	if err != nil {
		t.Fatalf("error creating client: %s", err)
	}
	_, err = newSyncer(t, c).Sync(context.Background(), profile, []string{"b.com"}, true)
	var ae *nextdns.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected *AuthError; got %v", err)
	}
	if expected, got := active("a.com"), srv.Entries(profile, nextdns.Denylist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected an untouched list %+v; got %+v", expected, got)
	}
}

func TestSyncConcurrency(t *testing.T) {
	var current []nextdns.Entry
	var desired []string
	for _, c := range "abcdefghijklmnopqrst" {
		current = append(current, nextdns.Entry{Domain: "old-" + string(c) + ".com", Active: true})
		desired = append(desired, "new-"+string(c)+".com")
	}
	srv, c := setup(t, current...)
	s := newSyncer(t, c, nextdns.SyncConcurrency(4))

	summary, err := s.Sync(context.Background(), profile, desired, true)
	if err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if summary.Added != 20 || summary.Removed != 20 {
		t.Fatalf("Unexpected summary %+v", summary)
	}

	sawAdd := false
	for _, call := range srv.Calls("") {
		switch call.Method {
		case http.MethodPost:
			sawAdd = true
		case http.MethodDelete:
			if sawAdd {
				t.Fatalf("Expected every removal to finish before the first addition")
			}
		}
	}
	for _, e := range srv.Entries(profile, nextdns.Denylist) {
		if !strings.HasPrefix(e.Domain, "new-") {
			t.Fatalf("Unexpected entry %+v", e)
		}
	}
}

func TestSyncCanceled(t *testing.T) {
	_, c := setup(t, active("a.com")...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSyncer(t, c).Sync(ctx, profile, []string{"b.com"}, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled; got %v", err)
	}
}

func TestSyncAllowlist(t *testing.T) {
	srv, c := setup(t, active("blocked.com")...)
	srv.SetEntries(profile, nextdns.Allowlist, active("old-allowed.com")...)
	s := newSyncer(t, c, nextdns.SyncList(nextdns.Allowlist))

	if _, err := s.Sync(context.Background(), profile, []string{"allowed.com"}, true); err != nil {
		t.Fatalf("Sync failed: %s", err)
	}
	if expected, got := active("allowed.com"), srv.Entries(profile, nextdns.Allowlist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}
	if expected, got := active("blocked.com"), srv.Entries(profile, nextdns.Denylist); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected the denylist untouched %+v; got %+v", expected, got)
	}
}

func TestNewSyncerOptions(t *testing.T) {
	_, c := setup(t)
	for _, opt := range []nextdns.SyncOption{
		nextdns.SyncConcurrency(0),
		nextdns.SyncList("blocklist"),
		nextdns.SyncFormat("csv"),
	} {
		if _, err := nextdns.NewSyncer(c, opt); err == nil {
			t.Fatalf("Expected an option error; got err == nil")
		}
	}
	if _, err := nextdns.NewSyncer(nil); err == nil {
		t.Fatalf("Expected an error for a nil service; got err == nil")
	}
}
