package nextdns

import (
	"context"
	"io"
)

// ListService is the subset of the NextDNS API used by the Syncer.
type ListService interface {
	Entries(ctx context.Context, kind ListKind, profileID string) ([]Entry, error)
	AddEntry(ctx context.Context, kind ListKind, profileID, domain string, active bool) error
	RemoveEntry(ctx context.Context, kind ListKind, profileID, domain string) error
	SetEntryActive(ctx context.Context, kind ListKind, profileID, domain string, active bool) error
}

// Source provides the raw text of a domain list.
type Source interface {
	Open(context.Context) (io.ReadCloser, error)
	String() string
}

var _ ListService = (*Client)(nil)
