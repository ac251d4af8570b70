package nextdns

import (
	"context"
	"io"
	"os"
	"strings"
)

// OpenSource picks a URLSource for http:// and https:// locations and a FileSource otherwise.
func OpenSource(location string) Source {
	lower := strings.ToLower(location)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return URLSource(location)
	}
	return FileSource(location)
}

// FileSource reads a domain list from the local filesystem.
type FileSource string

func (f FileSource) Open(context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(string(f))
	if err != nil {
		return nil, &SourceUnreadableError{Source: string(f), Err: err}
	}
	return fh, nil
}

func (f FileSource) String() string { return string(f) }
