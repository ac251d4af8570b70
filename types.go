package nextdns

import "fmt"

// ListKind selects which per-profile domain list an operation targets.
type ListKind string

const (
	Denylist  ListKind = "denylist"
	Allowlist ListKind = "allowlist"
)

// ParseListKind accepts "denylist" or "allowlist".
func ParseListKind(s string) (ListKind, error) {
	switch k := ListKind(s); k {
	case Denylist, Allowlist:
		return k, nil
	default:
		return "", fmt.Errorf("unknown list %q", s)
	}
}

// Profile is a NextDNS configuration profile.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is a domain held on a profile list.
// Active entries are enforced; inactive ones are listed but ignored by the resolver.
type Entry struct {
	Domain string `json:"id"`
	Active bool   `json:"active"`
}

func (e Entry) String() string {
	if e.Active {
		return e.Domain
	}
	return e.Domain + " (inactive)"
}

// Op names a mutating call made during a sync.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
)

// Failure records a single per-domain call that did not succeed.
type Failure struct {
	Domain string
	Op     Op
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %s", f.Op, f.Domain, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Summary reports the outcome of a sync.
// Counts only include calls that succeeded; see Failures for the rest.
type Summary struct {
	Added     int
	Removed   int
	Updated   int
	Unchanged int
	Failures  []Failure
}

// Failed is the number of per-domain calls that returned an error.
func (s Summary) Failed() int { return len(s.Failures) }

func (s Summary) String() string {
	return fmt.Sprintf("added=%d removed=%d updated=%d unchanged=%d failed=%d",
		s.Added, s.Removed, s.Updated, s.Unchanged, s.Failed())
}
