package baserow

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"baserow-bridge/internal/common/errors"
	"baserow-bridge/internal/common/httpclient"
	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/common/ratelimit"
	"baserow-bridge/internal/common/utils"
)

// DefaultPageSize is the largest page the list-rows endpoint serves.
const DefaultPageSize = 200

// Filter narrows the listing on the server with
// filter__<field>__<type>=<value>.
type Filter struct {
	Field string
	Type  string
	Value string
}

// Param returns the query parameter name for the filter.
func (f Filter) Param() string {
	if f.Type == "" {
		return "filter__" + f.Field
	}
	return "filter__" + f.Field + "__" + f.Type
}

// Options configures a Fetcher.
type Options struct {
	// URL is the list-rows endpoint with the table id already substituted.
	URL                string
	Token              string
	PageSize           int
	PageDelay          time.Duration
	Timeout            time.Duration
	MaxAttempts        int
	InsecureSkipVerify bool
	// Filter is sent on the first request only; later pages reuse the query
	// embedded in the next cursor.
	Filter *Filter
}

// Fetcher pages through a table and accumulates every row.
type Fetcher struct {
	opts   Options
	client *httpclient.Client
	logger logging.Logger
}

// NewFetcher builds a Fetcher. Pages are spaced by opts.PageDelay and failed
// pages are retried up to opts.MaxAttempts times in total.
func NewFetcher(opts Options, logger logging.Logger) (*Fetcher, error) {
	if opts.URL == "" {
		return nil, errors.ConfigError("baserow: list-rows URL is required")
	}
	if opts.Token == "" {
		return nil, errors.ConfigError("baserow: API token is required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	limiter, err := ratelimit.NewIntervalLimiter(opts.PageDelay)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("baserow: %v", err))
	}

	client := httpclient.NewClient(
		httpclient.WithTimeout(opts.Timeout),
		httpclient.WithInsecureSkipVerify(opts.InsecureSkipVerify),
	).WithRateLimiter(limiter)

	if opts.MaxAttempts > 1 {
		retry := utils.DefaultRetryConfig()
		retry.MaxAttempts = opts.MaxAttempts
		client.WithRetryConfig(retry)
	}

	return &Fetcher{
		opts:   opts,
		client: client,
		logger: logger.WithFields(logging.String("component", "baserow")),
	}, nil
}

// FirstPageURL returns the URL of the first request: the configured endpoint
// with user_field_names, size and the optional filter merged into its query.
func (f *Fetcher) FirstPageURL() (string, error) {
	u, err := url.Parse(f.opts.URL)
	if err != nil {
		return "", errors.ConfigError(fmt.Sprintf("baserow: invalid list-rows URL: %v", err))
	}

	query := u.Query()
	query.Set("user_field_names", "true")
	query.Set("size", strconv.Itoa(f.opts.PageSize))
	if f.opts.Filter != nil {
		query.Set(f.opts.Filter.Param(), f.opts.Filter.Value)
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// FetchAll follows the next cursor until it runs out and returns every row in
// page order. Any failed page aborts the whole fetch.
func (f *Fetcher) FetchAll(ctx context.Context) ([]Row, error) {
	logger := f.logger.WithContext(ctx)

	next, err := f.FirstPageURL()
	if err != nil {
		return nil, err
	}

	var rows []Row
	seen := make(map[string]struct{})
	start := time.Now()

	for pageNum := 1; next != ""; pageNum++ {
		if _, dup := seen[next]; dup {
			return nil, errors.DecodeError("baserow: pagination cursor repeats", nil).
				WithContext("page", pageNum)
		}
		seen[next] = struct{}{}

		page, err := f.fetchPage(ctx, next)
		if err != nil {
			return nil, err
		}

		rows = append(rows, page.Results...)
		logger.Debug("Fetched page",
			logging.Int("page", pageNum),
			logging.Int("page_rows", len(page.Results)),
			logging.Int("total_rows", len(rows)),
		)

		next = page.NextURL()
	}

	logger.Info("Fetched rows",
		logging.Int("rows", len(rows)),
		logging.Duration("duration", time.Since(start)),
	)
	return rows, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := f.client.Do(ctx, &httpclient.Request{
		Method: "GET",
		URL:    pageURL,
		Headers: map[string]string{
			"Authorization": "Token " + f.opts.Token,
			"Accept":        "application/json",
		},
	})
	if err != nil {
		return nil, err
	}

	page, err := DecodePage(resp.Body)
	if err != nil {
		return nil, errors.DecodeError("baserow: cannot decode list-rows response", err)
	}
	return page, nil
}
