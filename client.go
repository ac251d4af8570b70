package nextdns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 16 << 20

// Profiles returns every profile visible to the API key.
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	profiles, err := getAll[Profile](ctx, c, "/profiles")
	if err != nil {
		return nil, fmt.Errorf("error listing profiles: %w", err)
	}
	return profiles, nil
}

// Entries returns the current contents of a profile list.
func (c *Client) Entries(ctx context.Context, kind ListKind, profileID string) ([]Entry, error) {
	if profileID == "" {
		return nil, ErrEmptyProfileID
	}
	entries, err := getAll[Entry](ctx, c, listPath(kind, profileID))
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", kind, profileErr(err, profileID))
	}
	return entries, nil
}

// AddEntry adds domain to a profile list.
func (c *Client) AddEntry(ctx context.Context, kind ListKind, profileID, domain string, active bool) error {
	if profileID == "" {
		return ErrEmptyProfileID
	}
	err := c.do(ctx, http.MethodPost, listPath(kind, profileID), nil, Entry{Domain: domain, Active: active}, nil)
	if err != nil {
		return fmt.Errorf("error adding %s to %s: %w", domain, kind, profileErr(err, profileID))
	}
	return nil
}

// RemoveEntry deletes domain from a profile list.
func (c *Client) RemoveEntry(ctx context.Context, kind ListKind, profileID, domain string) error {
	if profileID == "" {
		return ErrEmptyProfileID
	}
	if err := c.do(ctx, http.MethodDelete, entryPath(kind, profileID, domain), nil, nil, nil); err != nil {
		return fmt.Errorf("error removing %s from %s: %w", domain, kind, err)
	}
	return nil
}

// SetEntryActive switches an existing entry between active and inactive.
func (c *Client) SetEntryActive(ctx context.Context, kind ListKind, profileID, domain string, active bool) error {
	if profileID == "" {
		return ErrEmptyProfileID
	}
	body := struct {
		Active bool `json:"active"`
	}{active}
	if err := c.do(ctx, http.MethodPatch, entryPath(kind, profileID, domain), nil, body, nil); err != nil {
		return fmt.Errorf("error updating %s on %s: %w", domain, kind, err)
	}
	return nil
}

func listPath(kind ListKind, profileID string) string {
	return fmt.Sprintf("/profiles/%s/%s", url.PathEscape(profileID), kind)
}

func entryPath(kind ListKind, profileID, domain string) string {
	return fmt.Sprintf("%s/%s", listPath(kind, profileID), url.PathEscape(domain))
}

// profileErr turns a 404 on a profile-scoped request into a ProfileNotFoundError.
func profileErr(err error, profileID string) error {
	var rse *RemoteServiceError
	if errors.As(err, &rse) && rse.StatusCode == http.StatusNotFound {
		return &ProfileNotFoundError{ProfileID: profileID}
	}
	return err
}

type pageOptions struct {
	Cursor string `url:"cursor,omitempty"`
}

type page[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	} `json:"meta"`
}

// getAll follows the pagination cursor until the API stops returning one.
func getAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var (
		out  []T
		opts pageOptions
		seen = map[string]bool{}
	)
	for {
		params, err := query.Values(opts)
		if err != nil {
			return nil, fmt.Errorf("error encoding query: %w", err)
		}
		var p page[T]
		if err := c.do(ctx, http.MethodGet, path, params, nil, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Data...)

		next := p.Meta.Pagination.Cursor
		if next == "" || seen[next] {
			return out, nil
		}
		seen[next] = true
		opts.Cursor = next
	}
}

type apiErrors struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// do performs one API call. A non-nil in is sent as the JSON body and a
// non-nil out receives the decoded JSON response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	uri := c.baseURL + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	var body interface{}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		body = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.logger.WithFields(logrus.Fields{"method": method, "path": path})
	log.Debug("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	log.WithField("status", resp.StatusCode).Debug("api response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp, respBody)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func classify(resp *http.Response, body []byte) error {
	var code, detail string
	var ae apiErrors
	if json.Unmarshal(body, &ae) == nil && len(ae.Errors) > 0 {
		code, detail = ae.Errors[0].Code, ae.Errors[0].Detail
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Detail: detail}
	default:
		return &RemoteServiceError{StatusCode: resp.StatusCode, Code: code, Detail: detail}
	}
}
