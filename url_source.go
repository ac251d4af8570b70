package nextdns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// URLSource downloads a domain list over HTTP(S).
//
// The server must answer with a 2xx status;
// anything else is reported as a SourceUnreadableError.
type URLSource string

// SourceHTTPClient is used by URLSource. Replace it to add proxies or custom TLS.
var SourceHTTPClient = cleanhttp.DefaultClient()

func (u URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	// the deadline covers reading the body too; see cancelBody
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(u), nil)
	if err != nil {
		cancel()
		return nil, &SourceUnreadableError{Source: string(u), Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", "nextdnsctl")

	resp, err := SourceHTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, &SourceUnreadableError{Source: string(u), Err: fmt.Errorf("http request failed: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, &SourceUnreadableError{Source: string(u), Err: fmt.Errorf("http request returned %s", resp.Status)}
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (u URLSource) String() string { return string(u) }

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
