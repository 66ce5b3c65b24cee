package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// expiry format of the laravel_session cookie
const cookieTimeLayout = "Mon, 02-Jan-2006 15:04:05 MST"

// trackSessionCookie records the session cookie expiry from every
// response, so expiry checks never need a network round-trip.
func (c *Client) trackSessionCookie(_ *resty.Client, res *resty.Response) error {
	for _, ck := range res.Cookies() {
		if ck.Name != sessionCookie {
			continue
		}
		expires := ck.Expires
		if expires.IsZero() && ck.RawExpires != "" {
			t, err := time.Parse(cookieTimeLayout, ck.RawExpires)
			if err != nil {
				continue
			}
			expires = t
		}
		c.mu.Lock()
		c.sessionExpiry = expires.UTC()
		c.mu.Unlock()
	}
	return nil
}

// checkSession resets the session state when the session cookie is
// absent or has expired. Expiry exactly at the current second counts
// as expired. Runs before every operation.
func (c *Client) checkSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	if c.sessionExpiry.IsZero() || !now.Before(c.sessionExpiry) {
		c.token = ""
		c.accounts = nil
	}
}

// Open opens a session and logs in with the credentials configured on
// the client.
func (c *Client) Open(ctx context.Context) error {
	if err := c.guard(ctx, modeCheckOnly, false); err != nil {
		return err
	}
	return c.open(ctx, "", "", true)
}

// OpenAs logs in with explicit credentials, overriding the configured
// ones. The pair that works becomes the cached pair.
func (c *Client) OpenAs(ctx context.Context, login, password string) error {
	if err := c.guard(ctx, modeCheckOnly, false); err != nil {
		return err
	}
	return c.open(ctx, login, password, true)
}

// OpenAnonymous opens a session without logging in. Public endpoints
// need nothing more.
func (c *Client) OpenAnonymous(ctx context.Context) error {
	if err := c.guard(ctx, modeCheckOnly, false); err != nil {
		return err
	}
	return c.open(ctx, "", "", false)
}

func (c *Client) open(ctx context.Context, login, password string, auth bool) (err error) {
	ctx, span := tracer.Start(ctx, "client:open")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session open failed")
		}
	}()

	if !c.Opened() {
		if err := c.acquireGate(ctx); err != nil {
			return err
		}

		slog.DebugContext(ctx, "opening new session")

		token, err := c.fetchLoginToken(ctx)
		if err != nil {
			// the session never reached the opened state, so Close
			// will not run; give the permit back here or it leaks
			c.releaseGate()
			return err
		}

		c.mu.Lock()
		c.token = token
		c.mu.Unlock()

		slog.DebugContext(ctx, "session opened")
	}

	if !auth || c.Authorized() {
		return nil
	}

	c.mu.Lock()
	if login == "" {
		login = c.login
	}
	if password == "" {
		password = c.password
	}
	c.mu.Unlock()

	if login == "" || password == "" {
		return fmt.Errorf("%w: no credentials configured", ErrAuthorization)
	}

	slog.DebugContext(ctx, "logging in", "login", login)

	res, err := c.postForm(ctx, "/login", map[string]string{
		"login":    login,
		"password": password,
	})
	if err != nil {
		return err
	}

	// a rejected login re-renders the login page instead of
	// redirecting away, so compare the final URL against the first
	// one in the redirect chain
	if sameAsFirstRequest(res.RawResponse) {
		return fmt.Errorf("%w: login rejected, check login and password", ErrAuthorization)
	}

	accounts, err := parseAccounts(res.Body())
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accounts = accounts
	c.login, c.password = login, password
	c.mu.Unlock()

	slog.DebugContext(ctx, "logged in", "login", login, "accounts", accounts)
	return nil
}

func (c *Client) fetchLoginToken(ctx context.Context) (string, error) {
	res, err := c.get(ctx, "/login", nil)
	if err != nil {
		return "", err
	}
	return parseToken(res.Body())
}

// acquireGate takes the shared admission permit unless this client
// already holds one (a cookie-expired session keeps its permit until
// Close runs).
func (c *Client) acquireGate(ctx context.Context) error {
	c.mu.Lock()
	held := c.gateHeld
	c.mu.Unlock()
	if held {
		return nil
	}
	if err := c.gate.Acquire(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.gateHeld = true
	c.mu.Unlock()
	return nil
}

func (c *Client) releaseGate() {
	c.mu.Lock()
	held := c.gateHeld
	c.gateHeld = false
	c.mu.Unlock()
	if held {
		c.gate.Release()
	}
}

func sameAsFirstRequest(res *http.Response) bool {
	if res == nil || res.Request == nil {
		return false
	}
	final := res.Request.URL
	return final != nil && final.String() == firstRequestURL(res).String()
}

// firstRequestURL walks the redirect chain back to the request that
// started it.
func firstRequestURL(res *http.Response) *url.URL {
	req := res.Request
	for req.Response != nil && req.Response.Request != nil {
		req = req.Response.Request
	}
	return req.URL
}

// Close logs out, resets the session state and releases the admission
// permit. The reset and the release happen even when the logout
// request fails. releaseTransport additionally drops the kept-alive
// connections.
func (c *Client) Close(ctx context.Context, releaseTransport bool) error {
	if err := c.guard(ctx, modeCheckOnly, false); err != nil {
		return err
	}
	return c.closeSession(ctx, releaseTransport)
}

func (c *Client) closeSession(ctx context.Context, releaseTransport bool) (err error) {
	defer func() {
		c.mu.Lock()
		c.token = ""
		c.accounts = nil
		c.mu.Unlock()

		if releaseTransport {
			c.http.GetClient().CloseIdleConnections()
		}
		c.releaseGate()
	}()

	if !c.Authorized() {
		return nil
	}

	c.mu.Lock()
	login := c.login
	c.mu.Unlock()
	slog.DebugContext(ctx, "logging out", "login", login)

	_, err = c.get(ctx, "/logout", nil)
	return err
}
