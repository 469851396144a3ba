package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tablescout/tablescout/internal/client/models"
	"github.com/tablescout/tablescout/internal/client/session"
	"github.com/tablescout/tablescout/internal/common"
	"golang.org/x/sync/singleflight"
)

const (
	pathRegister       = "/api/v1/auth/register"
	pathLogin          = "/api/v1/auth/login"
	pathRefresh        = "/api/v1/auth/refresh"
	pathLogout         = "/api/v1/auth/logout"
	pathLogoutAll      = "/api/v1/auth/logout-all"
	pathMe             = "/api/v1/auth/me"
	pathEstablishments = "/api/v1/establishments"
	pathMyVenues       = "/api/v1/partner/establishments"
	pathHealth         = "/healthz"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client
	session *session.Session
	refresh singleflight.Group
}

// NewHTTPClient returns a client for the API at baseURL. The client never
// keeps cookies; the refresh token travels in request bodies only.
func NewHTTPClient(baseURL string, timeout time.Duration, s *session.Session) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		session: s,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerResponse struct {
	User models.User `json:"user"`
	models.TokenPair
}

type createEstablishmentResponse struct {
	Establishment models.Establishment `json:"establishment"`
	Tokens        *models.TokenPair    `json:"tokens"`
}

func (c *HTTPClient) Register(ctx context.Context, email, password string) (*models.User, error) {
	var resp registerResponse
	if err := c.call(ctx, http.MethodPost, pathRegister, "", credentials{email, password}, &resp); err != nil {
		return nil, err
	}
	if err := c.store(ctx, &resp.TokenPair); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) error {
	var pair models.TokenPair
	if err := c.call(ctx, http.MethodPost, pathLogin, "", credentials{email, password}, &pair); err != nil {
		return err
	}
	return c.store(ctx, &pair)
}

// Refresh rotates the session's pair now.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	return c.renew(ctx, c.session.Tokens())
}

// Logout revokes the session's refresh token and clears the session. The
// local session is cleared even if the server call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	tokens := c.session.Tokens()
	if tokens.RefreshToken == "" {
		return nil
	}

	// the body is built per attempt so a retry after refresh revokes the new token
	body := bodyFunc(func(t session.Tokens) any { return refreshRequest{t.RefreshToken} })
	err := c.authed(ctx, http.MethodPost, pathLogout, body, nil)
	if clearErr := c.session.Clear(ctx); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// LogoutAll revokes every session of the caller and clears this one.
func (c *HTTPClient) LogoutAll(ctx context.Context) (int64, error) {
	var resp struct {
		Revoked int64 `json:"revoked"`
	}
	err := c.authed(ctx, http.MethodPost, pathLogoutAll, nil, &resp)
	if clearErr := c.session.Clear(ctx); clearErr != nil && err == nil {
		err = clearErr
	}
	return resp.Revoked, err
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.authed(ctx, http.MethodGet, pathMe, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateEstablishment registers a venue. When that promotes the caller to
// partner the reissued pair replaces the session's.
func (c *HTTPClient) CreateEstablishment(ctx context.Context, e models.Establishment) (*models.Establishment, error) {
	var resp createEstablishmentResponse
	if err := c.authed(ctx, http.MethodPost, pathEstablishments, e, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens != nil {
		if err := c.store(ctx, resp.Tokens); err != nil {
			return nil, err
		}
	}
	return &resp.Establishment, nil
}

func (c *HTTPClient) ListMyEstablishments(ctx context.Context) ([]models.Establishment, error) {
	var resp struct {
		Establishments []models.Establishment `json:"establishments"`
	}
	if err := c.authed(ctx, http.MethodGet, pathMyVenues, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Establishments, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, pathHealth, "", nil, nil)
}

func (c *HTTPClient) store(ctx context.Context, p *models.TokenPair) error {
	return c.session.Set(ctx, session.Tokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken})
}

// bodyFunc builds a request body from the pair the attempt is made with.
type bodyFunc func(session.Tokens) any

func requestBody(in any, t session.Tokens) any {
	if f, ok := in.(bodyFunc); ok {
		return f(t)
	}
	return in
}

// authed performs an authenticated call. A 401 triggers one refresh and one
// retry with the new access token.
func (c *HTTPClient) authed(ctx context.Context, method, path string, in, out any) error {
	used := c.session.Tokens()
	if used.AccessToken == "" {
		return common.ErrorUnauthorized
	}

	status, body, err := c.send(ctx, method, path, used.AccessToken, requestBody(in, used))
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.renew(ctx, used); err != nil {
			return err
		}
		current := c.session.Tokens()
		if current.AccessToken == "" {
			return common.ErrSessionExpired
		}
		status, body, err = c.send(ctx, method, path, current.AccessToken, requestBody(in, current))
		if err != nil {
			return err
		}
	}
	return decode(status, body, out)
}

// renew replaces the pair that used belongs to. If another caller already
// replaced it, there is nothing to do. Calls for the same refresh token
// share one request, so a rotated-out token is never sent twice.
func (c *HTTPClient) renew(ctx context.Context, used session.Tokens) error {
	if used.RefreshToken == "" {
		return common.ErrSessionExpired
	}

	_, err, _ := c.refresh.Do(used.RefreshToken, func() (any, error) {
		if c.session.Tokens().RefreshToken != used.RefreshToken {
			return nil, nil
		}

		var pair models.TokenPair
		err := c.call(ctx, http.MethodPost, pathRefresh, "", refreshRequest{used.RefreshToken}, &pair)
		if err != nil {
			if isRejection(err) {
				_ = c.session.Clear(ctx)
				return nil, common.ErrSessionExpired
			}
			return nil, err
		}
		return nil, c.store(ctx, &pair)
	})
	return err
}

// isRejection reports whether the server refused the refresh token, as
// opposed to the request not getting through.
func isRejection(err error) bool {
	return errors.Is(err, common.ErrSessionExpired) ||
		errors.Is(err, common.ErrorUnauthorized) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrForbidden) ||
		errors.Is(err, common.ErrorValidation)
}

func (c *HTTPClient) call(ctx context.Context, method, path, token string, in, out any) error {
	status, body, err := c.send(ctx, method, path, token, in)
	if err != nil {
		return err
	}
	return decode(status, body, out)
}

func (c *HTTPClient) send(ctx context.Context, method, path, token string, in any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

func decode(status int, body []byte, out any) error {
	if status < 200 || status > 299 {
		return mapError(status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
