package reddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/config"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// Options configures a Client built around an existing HTTP client.
type Options struct {
	BaseURL           string
	UserAgent         string
	RequestsPerMinute int
	// Now returns the current time for interval filtering. Defaults to time.Now.
	Now func() time.Time
}

// Client is a rate-limited Reddit API client.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *zap.Logger
}

// New builds an authenticated client. The password grant is used when
// creds carries a username, the client-credentials grant otherwise.
func New(ctx context.Context, cfg config.RedditConfig, creds config.RedditCredentials, logger *zap.Logger) (*Client, error) {
	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: creds.UserAgent},
	}
	// Token requests go through base and carry the User-Agent too.
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, base)

	var ts oauth2.TokenSource
	if creds.Username != "" {
		oc := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		}
		ts = oauth2.ReuseTokenSource(nil, &passwordTokenSource{
			ctx:      tokenCtx,
			config:   oc,
			username: creds.Username,
			password: creds.Password,
		})
	} else {
		cc := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ts = cc.TokenSource(tokenCtx)
	}

	httpClient := oauth2.NewClient(tokenCtx, ts)
	httpClient.Timeout = cfg.Timeout

	return NewWithHTTPClient(httpClient, Options{
		BaseURL:           cfg.BaseURL,
		UserAgent:         creds.UserAgent,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, logger), nil
}

// NewWithHTTPClient wraps an HTTP client that already handles authentication.
func NewWithHTTPClient(httpClient *http.Client, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
		now:       opts.Now,
		logger:    logger.With(zap.String("component", "reddit_client")),
	}
}

// get issues one throttled GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeTimeout, "rate limiter wait cancelled")
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("raw_json", "1")
	fullURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to create HTTP request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return etlerrors.Wrap(err, etlerrors.ErrorTypeAuthentication, "failed to obtain access token")
		}
		return etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "HTTP request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := fmt.Sprintf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return etlerrors.New(etlerrors.ErrorTypeAuthentication, msg)
		case http.StatusTooManyRequests:
			return etlerrors.New(etlerrors.ErrorTypeRateLimit, msg)
		default:
			return etlerrors.New(etlerrors.ErrorTypeConnection, msg)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to decode API response")
	}
	return nil
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// passwordTokenSource runs the password grant again whenever the cached
// token expires; Reddit does not issue refresh tokens for it.
type passwordTokenSource struct {
	ctx      context.Context
	config   *oauth2.Config
	username string
	password string
}

func (s *passwordTokenSource) Token() (*oauth2.Token, error) {
	return s.config.PasswordCredentialsToken(s.ctx, s.username, s.password)
}
