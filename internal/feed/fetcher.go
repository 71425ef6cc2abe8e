package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bilgisen/feedviewer/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Fetcher asks the conversion endpoint for the feed at feedURL.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*models.Envelope, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Count    int
	// Timeout of zero leaves the transport default in place.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client talks to an rss2json compatible endpoint.
type Client struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	count    int
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		client: resty.New().
			SetTimeout(cfg.Timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json").
			SetLogger(restyLogger{cfg.Logger}),
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		count:    cfg.Count,
	}
}

// Fetch issues one GET against the endpoint with feedURL as rss_url.
func (c *Client) Fetch(ctx context.Context, feedURL string) (*models.Envelope, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("rss_url", feedURL)
	if c.apiKey != "" {
		req.SetQueryParam("api_key", c.apiKey)
	}
	if c.count > 0 {
		req.SetQueryParam("count", strconv.Itoa(c.count))
	}

	resp, err := req.Get(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	// rss2json reports rejections with 4xx codes and a JSON body, so the
	// envelope decides the outcome, not the HTTP status.
	var env models.Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%w: undecodable response (http %d): %w", ErrNetworkFailure, resp.StatusCode(), err)
	}

	if err := checkEnvelope(&env, resp.StatusCode()); err != nil {
		return nil, err
	}
	return &env, nil
}

func checkEnvelope(env *models.Envelope, statusCode int) error {
	if env.Status != models.StatusOK {
		return &UpstreamError{Status: env.Status, Message: env.Message, StatusCode: statusCode}
	}
	return nil
}

// restyLogger routes resty's diagnostics into zerolog.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error().Str("source", "resty").Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn().Str("source", "resty").Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Str("source", "resty").Msgf(format, v...)
}
