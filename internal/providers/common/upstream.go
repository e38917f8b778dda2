package common

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	maxErrorBodyBytes    = 1024
	maxResponseBodyBytes = 2 * 1024 * 1024
)

type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindService     ErrorKind = "service_error"
	KindUnreachable ErrorKind = "unreachable"
)

// UpstreamError describes a failed call to an external service. StatusCode is
// zero when the service could not be reached at all.
type UpstreamError struct {
	Service    string
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Details    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	switch e.Kind {
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("%s rate limited (retry after %s)", e.Service, e.RetryAfter)
		}
		return fmt.Sprintf("%s rate limited", e.Service)
	case KindUnreachable:
		if e.Err != nil {
			return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
		}
		return fmt.Sprintf("%s unreachable", e.Service)
	default:
		if e.Details != "" {
			return fmt.Sprintf("%s HTTP %d: %s", e.Service, e.StatusCode, e.Details)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s HTTP %d: %v", e.Service, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s HTTP %d", e.Service, e.StatusCode)
	}
}

// Summary is the client-safe form of the error: service, kind and status only.
// It never carries upstream payloads or request URLs.
func (e *UpstreamError) Summary() string {
	if e == nil {
		return "upstream error"
	}
	switch e.Kind {
	case KindRateLimited:
		return e.Service + " rate limited"
	case KindUnreachable:
		return e.Service + " unreachable"
	default:
		if e.StatusCode > 0 {
			return fmt.Sprintf("%s HTTP %d", e.Service, e.StatusCode)
		}
		return e.Service + " request failed"
	}
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func AsUpstream(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream != nil {
		return upstream, true
	}
	return nil, false
}

func IsRateLimited(err error) bool {
	upstream, ok := AsUpstream(err)
	return ok && upstream.Kind == KindRateLimited
}

func Unreachable(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Kind: KindUnreachable, Err: err}
}

func ServiceError(service string, status int, details string) *UpstreamError {
	return &UpstreamError{Service: service, Kind: KindService, StatusCode: status, Details: details}
}

// FromResponse converts a non-2xx response into an UpstreamError. The body is
// read up to a small limit and kept for diagnostics only.
func FromResponse(service string, resp *http.Response, now time.Time) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	details := strings.TrimSpace(string(body))
	if resp.StatusCode == http.StatusTooManyRequests {
		return &UpstreamError{
			Service:    service,
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), now),
			Details:    details,
		}
	}
	return ServiceError(service, resp.StatusCode, details)
}

// ParseRetryAfter accepts both delta-seconds and HTTP-date forms.
func ParseRetryAfter(raw string, now time.Time) time.Duration {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

// DoJSON executes req and decodes a 2xx JSON body into out. Transport failures
// become KindUnreachable, non-2xx statuses become rate-limit or service errors.
func DoJSON(client *http.Client, service string, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return Unreachable(service, redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FromResponse(service, resp, time.Now())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return Unreachable(service, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{
			Service:    service,
			Kind:       KindService,
			StatusCode: resp.StatusCode,
			Details:    "invalid JSON response",
			Err:        err,
		}
	}
	return nil
}

// redactURLError drops the query string from a transport error. Catalog and
// LLM credentials travel as query parameters.
func redactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: RedactURL(urlErr.URL), Err: urlErr.Err}
}

// RedactURL returns raw without its query string and fragment.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil
	return parsed.String()
}
