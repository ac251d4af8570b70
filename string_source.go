package nextdns

import (
	"context"
	"io"
	"strings"
)

// FromString constructs a source that serves text verbatim.
func FromString(text string) Source {
	return stringSource(text)
}

// FromDomains constructs a source listing the given domains, one per line.
func FromDomains(domains ...string) Source {
	return stringSource(strings.Join(domains, "\n"))
}

type stringSource string

func (s stringSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(s))), nil
}

func (s stringSource) String() string { return "inline" }
