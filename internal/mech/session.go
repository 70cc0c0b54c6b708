// Package mech implements the browsing session state machine: fetch, parse
// and index a page, select links and forms declaratively, mutate form fields,
// re-submit requests, and walk back through history snapshots.
package mech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tcheukueppo/WWW-Mechanize/internal/config"
	"github.com/tcheukueppo/WWW-Mechanize/internal/forms"
	"github.com/tcheukueppo/WWW-Mechanize/internal/network"
)

var (
	// ErrNoPage is returned by operations that need a current page before
	// any request succeeded in establishing one.
	ErrNoPage = errors.New("no page has been fetched")
	// ErrNoForm is returned by form operations when no form is selected.
	ErrNoForm = errors.New("no form is selected")
	// ErrLinkNotFound is returned when no link satisfies the criteria.
	ErrLinkNotFound = errors.New("no link matched the criteria")
	// ErrInvalidCriteria is returned when criteria cannot drive the
	// requested operation, e.g. selecting all matches for a single follow.
	ErrInvalidCriteria = errors.New("criteria are invalid for this operation")
)

// Session is one scripted browsing client: the current page state, the
// history stack and the HTTP client driving exchanges. A Session is mutable
// single-owner data; concurrent use must be serialized by the caller.
type Session struct {
	id        string
	logger    *zap.Logger
	cfg       *config.Config
	client    *http.Client
	headers   *Headers
	userAgent string
	quiet     bool

	page        *page
	lastURI     *url.URL // last successfully fetched URI, used for Referer
	lastRequest *http.Request
	history     history
}

// Option configures a Session at construction.
type Option func(*Session)

// WithClient substitutes the HTTP client, primarily for tests and callers
// with pre-built transports.
func WithClient(client *http.Client) Option {
	return func(s *Session) { s.client = client }
}

// WithHeaders attaches a shared header table. Multiple sessions may reference
// the same table; its entries ride on every request of each of them.
func WithHeaders(h *Headers) Option {
	return func(s *Session) {
		if h != nil {
			s.headers = h
		}
	}
}

// WithUserAgent overrides the configured agent string.
func WithUserAgent(agent string) Option {
	return func(s *Session) { s.userAgent = agent }
}

// NewSession creates a browsing session from configuration. A nil config
// uses defaults; a nil logger is replaced with a no-op logger.
func NewSession(cfg *config.Config, logger *zap.Logger, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.NewString()
	s := &Session{
		id:        id,
		logger:    logger.With(zap.String("session_id", id)),
		cfg:       cfg,
		headers:   NewHeaders(),
		userAgent: cfg.Browse.UserAgent,
		quiet:     cfg.Browse.Quiet,
	}
	if s.userAgent == "" {
		s.userAgent = config.DefaultUserAgent
	}
	for name, value := range cfg.Network.Headers {
		s.headers.Set(name, value)
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		clientCfg := network.NewClientConfig()
		if cfg.Network.RequestTimeout > 0 {
			clientCfg.RequestTimeout = cfg.Network.RequestTimeout
		}
		clientCfg.InsecureSkipVerify = cfg.Network.IgnoreTLSErrors
		if cfg.Network.ProxyURL != "" {
			if proxyURL, err := url.Parse(cfg.Network.ProxyURL); err == nil {
				clientCfg.ProxyURL = proxyURL
			} else {
				logger.Warn("Ignoring unparseable proxy URL", zap.String("proxy_url", cfg.Network.ProxyURL), zap.Error(err))
			}
		}
		s.client = network.NewClient(clientCfg)
	}

	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Headers returns the session's shared header table.
func (s *Session) Headers() *Headers { return s.headers }

// SetUserAgent changes the agent string attached to subsequent requests.
func (s *Session) SetUserAgent(agent string) { s.userAgent = agent }

// SetQuiet toggles suppression of non-fatal warnings.
func (s *Session) SetQuiet(quiet bool) { s.quiet = quiet }

// Quiet reports whether non-fatal warnings are suppressed.
func (s *Session) Quiet() bool { return s.quiet }

// warn reports a non-fatal, recoverable condition unless the session is quiet.
func (s *Session) warn(msg string, fields ...zap.Field) {
	if s.quiet {
		return
	}
	s.logger.Warn(msg, fields...)
}

// --- Navigation ---

// Get fetches a URI, resolving it against the current page's base when
// relative, and re-derives the page state from the outcome. The state being
// replaced is pushed onto the history stack first, so Back() can cross plain
// fetches. A non-success status is not an error: check Success() after every
// navigation.
func (s *Session) Get(ctx context.Context, ref string) error {
	target, err := s.resolve(ref)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %q: %w", target.String(), err)
	}
	if s.page != nil {
		s.pushHistory()
	}
	return s.executeRequest(ctx, req)
}

// Reload re-issues the most recent request verbatim. It warns and fails if
// no request has been made yet. Reloading does not push history.
func (s *Session) Reload(ctx context.Context) error {
	if s.lastRequest == nil {
		s.warn("Reload called before any request was made")
		return ErrNoPage
	}
	return s.executeRequest(ctx, cloneRequest(ctx, s.lastRequest))
}

// Back pops the most recent history entry and restores the session to the
// state captured before the corresponding action. Returns false, after a
// warning, when the stack is empty.
func (s *Session) Back() bool {
	snap, ok := s.history.pop()
	if !ok {
		s.warn("Back called with an empty history stack")
		return false
	}
	s.page = snap.page
	s.lastURI = snap.lastURI
	s.lastRequest = snap.lastRequest
	s.logger.Debug("Restored previous page state", zap.String("url", urlString(s.URI())))
	return true
}

// HistoryDepth returns the number of entries available to Back().
func (s *Session) HistoryDepth() int { return s.history.depth() }

// resolve turns a possibly relative reference into an absolute URL using the
// current page's base.
func (s *Session) resolve(ref string) (*url.URL, error) {
	if s.page != nil && s.page.base != nil {
		resolved, err := s.page.base.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve URL %q: %w", ref, err)
		}
		return resolved, nil
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", ref, err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("cannot resolve relative URL %q without a current page", ref)
	}
	return parsed, nil
}

// executeRequest drives one exchange, following redirects itself: each hop
// records the target as the in-flight resolved URI, and a redirected POST is
// downgraded to GET the way interactive browsers do. Page state is re-derived
// exactly once per exchange, success or failure.
func (s *Session) executeRequest(ctx context.Context, req *http.Request) error {
	s.prepareRequest(req)
	requestURI := cloneURL(req.URL)
	s.lastRequest = cloneRequest(context.Background(), req)

	maxRedirects := s.cfg.Network.MaxRedirects
	current := req
	resolved := cloneURL(req.URL)

	for hop := 0; ; hop++ {
		s.logger.Debug("Executing request",
			zap.String("method", current.Method),
			zap.String("url", current.URL.String()))

		resp, err := s.client.Do(current)
		if err != nil {
			s.page = emptyPage(requestURI)
			s.page.resolvedURI = resolved
			return fmt.Errorf("request for %q failed: %w", current.URL.String(), err)
		}

		if isRedirect(resp.StatusCode) && resp.Header.Get("Location") != "" {
			_ = resp.Body.Close()
			if hop >= maxRedirects {
				s.page = emptyPage(requestURI)
				s.page.resolvedURI = resolved
				return fmt.Errorf("maximum number of redirects (%d) exceeded", maxRedirects)
			}
			next, err := s.redirectRequest(ctx, resp, current)
			if err != nil {
				s.page = emptyPage(requestURI)
				s.page.resolvedURI = resolved
				return fmt.Errorf("failed to handle redirect: %w", err)
			}
			resolved = cloneURL(next.URL)
			current = next
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			s.page = emptyPage(requestURI)
			s.page.resolvedURI = resolved
			s.page.status = resp.StatusCode
			return fmt.Errorf("failed to read response body: %w", readErr)
		}

		s.updateState(requestURI, resolved, resp, body)
		return nil
	}
}

// redirectRequest builds the follow-up request for a 3xx response. Any
// redirected POST becomes a GET with no body; this intentionally mimics
// common browser behavior rather than strict protocol compliance.
func (s *Session) redirectRequest(ctx context.Context, resp *http.Response, prev *http.Request) (*http.Request, error) {
	location := resp.Header.Get("Location")
	nextURL, err := prev.URL.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect Location %q: %w", location, err)
	}

	method := prev.Method
	if method == http.MethodPost {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, nextURL.String(), nil)
	if err != nil {
		return nil, err
	}
	s.prepareRequest(req)
	req.Header.Set("Referer", prev.URL.String())
	return req, nil
}

// updateState re-derives the whole page bundle from a completed exchange.
// Only a success-class status advances the last-successful URI; a failed
// exchange keeps the previous value for future Referer headers.
func (s *Session) updateState(requestURI, resolvedURI *url.URL, resp *http.Response, body []byte) {
	s.page = newPage(requestURI, resolvedURI, resp.StatusCode, resp.Header.Get("Content-Type"), body)
	if s.page.success() {
		s.lastURI = cloneURL(resolvedURI)
	} else {
		s.warn("Request resulted in non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", resolvedURI.String()))
	}
	s.logger.Debug("Page state updated",
		zap.String("url", resolvedURI.String()),
		zap.Int("status", s.page.status),
		zap.String("content_type", s.page.contentType),
		zap.Int("links", len(s.page.links)),
		zap.Int("forms", len(s.page.pageForms)))
}

// prepareRequest augments an outgoing request: agent string, Referer from the
// last successfully fetched URI, then every entry of the shared header table,
// which overwrites same-named headers already on the request.
func (s *Session) prepareRequest(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.lastURI != nil {
		req.Header.Set("Referer", s.lastURI.String())
	}
	s.headers.apply(req)
}

// pushHistory snapshots the full session state, deep-copied, so later
// in-place mutation cannot retroactively alter the entry.
func (s *Session) pushHistory() {
	s.history.push(&snapshot{
		page:        s.page.clone(),
		lastURI:     cloneURL(s.lastURI),
		lastRequest: cloneRequest(context.Background(), s.lastRequest),
	})
}

// --- Accessors ---

// URI returns the resolved (post-redirect) URI of the current page, nil if
// nothing has been fetched.
func (s *Session) URI() *url.URL {
	if s.page == nil {
		return nil
	}
	return s.page.resolvedURI
}

// Status returns the HTTP status of the current page, 0 if none.
func (s *Session) Status() int {
	if s.page == nil {
		return 0
	}
	return s.page.status
}

// Success reports whether the current page was fetched with a success-class
// status.
func (s *Session) Success() bool {
	return s.page != nil && s.page.success()
}

// ContentType returns the media type of the current page.
func (s *Session) ContentType() string {
	if s.page == nil {
		return ""
	}
	return s.page.contentType
}

// Content returns the current page body, decoded to UTF-8.
func (s *Session) Content() []byte {
	if s.page == nil {
		return nil
	}
	return s.page.content
}

// Title returns the document title, empty if the content is not markup or
// carries none.
func (s *Session) Title() string {
	if s.page == nil {
		return ""
	}
	return s.page.title
}

// Base returns the base URL relative references resolve against: the
// document's base element when present, otherwise the resolved URI.
func (s *Session) Base() *url.URL {
	if s.page == nil {
		return nil
	}
	return s.page.base
}

// Links returns the links extracted from the current page, in document order.
func (s *Session) Links() []*Link {
	if s.page == nil {
		return nil
	}
	return s.page.links
}

// Forms returns the forms parsed from the current page, in document order.
func (s *Session) Forms() []*forms.Form {
	if s.page == nil {
		return nil
	}
	return s.page.pageForms
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// cloneRequest duplicates a request so it can be re-issued; a consumed body
// is re-materialized through GetBody.
func cloneRequest(ctx context.Context, req *http.Request) *http.Request {
	if req == nil {
		return nil
	}
	cloned := req.Clone(ctx)
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			cloned.Body = body
		}
	}
	return cloned
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}
