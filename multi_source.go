package nextdns

import (
	"context"
	"errors"
	"io"
	"strings"
)

// MultiSource reads several sources one after another as if they were a single list.
type MultiSource []Source

func (m MultiSource) Open(ctx context.Context) (io.ReadCloser, error) {
	var (
		readers []io.Reader
		closers []io.Closer
	)
	for _, src := range m {
		rc, err := src.Open(ctx)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, err
		}
		// a list without a trailing newline must not merge into the next one's first line
		readers = append(readers, rc, strings.NewReader("\n"))
		closers = append(closers, rc)
	}
	return &multiReadCloser{Reader: io.MultiReader(readers...), closers: closers}, nil
}

func (m MultiSource) String() string {
	names := make([]string, 0, len(m))
	for _, src := range m {
		names = append(names, src.String())
	}
	return strings.Join(names, ", ")
}

type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
