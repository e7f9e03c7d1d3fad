package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/ticketbot/core/logger"
	"github.com/m3rciful/ticketbot/core/netutil"
	"github.com/m3rciful/ticketbot/core/sender"
)

// HTTPOptions tunes the Bot API client. Zero values select the defaults;
// a negative RetryAttempts disables retries.
type HTTPOptions struct {
	ClientTimeout time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

func (o HTTPOptions) withDefaults() HTTPOptions {
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = 30 * time.Second
	}
	switch {
	case o.RetryAttempts < 0:
		o.RetryAttempts = 0
	case o.RetryAttempts == 0:
		o.RetryAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// BuildHTTPClient returns a client that retries dial failures and timeouts.
// There is no response header timeout: long polls are bounded by the client timeout.
func BuildHTTPClient(opts HTTPOptions) *http.Client {
	opts = opts.withDefaults()
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: opts.ClientTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: time.Second,
			},
			retries: opts.RetryAttempts,
			backoff: opts.RetryBackoff,
		},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		next, ok := rewind(req)
		if !ok {
			break
		}
		delay := t.backoff * time.Duration(attempt)
		logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "http.retry",
			slog.Int("attempt", attempt),
			slog.String("op", path.Base(req.URL.Path)),
			slog.Duration("backoff", delay),
			slog.String("err", logger.SanitizeLimit(sender.SanitizeError(err), 128)),
		)
		if werr := sleep(ctx, delay); werr != nil {
			return nil, werr
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// rewind clones req with a fresh body. Requests whose body cannot be replayed are not retried.
func rewind(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
