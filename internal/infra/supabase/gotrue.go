package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/clouddrive/clouddrive-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// GoTrue auth API — sign-up/sign-in/recover/resend delegation
// (implements port.AuthGateway)
// ============================================================

// doAuthPost calls a GoTrue endpoint with the anon key. Credential flows run
// with the user-facing key, never the service role.
func (c *Client) doAuthPost(ctx context.Context, path string, payload any) ([]byte, int, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gotrue: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	c.logger.Debug("gotrue: request done", zap.String("path", path), zap.Int("status", resp.StatusCode))
	return body, resp.StatusCode, nil
}

// gotrueError is the error payload GoTrue returns on 4xx.
type gotrueError struct {
	Message          string `json:"msg"`
	ErrorDescription string `json:"error_description"`
}

func (e *gotrueError) text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	return "authentication failed"
}

func decodeSession(body []byte) (*domain.Session, error) {
	var session domain.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// SignUp registers a new user with the identity provider.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignUp")
	defer span.End()

	body, status, err := c.doAuthPost(ctx, "signup", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "auth.signup", Err: err}
	}
	if status < 200 || status >= 300 {
		var ge gotrueError
		_ = json.Unmarshal(body, &ge)
		return nil, &domain.ErrUnauthorized{Message: ge.text()}
	}

	return decodeSession(body)
}

// SignIn exchanges credentials for a session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignIn")
	defer span.End()

	body, status, err := c.doAuthPost(ctx, "token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, &domain.ErrStoreUnavailable{Op: "auth.signin", Err: err}
	}
	if status < 200 || status >= 300 {
		var ge gotrueError
		_ = json.Unmarshal(body, &ge)
		return nil, &domain.ErrUnauthorized{Message: ge.text()}
	}

	return decodeSession(body)
}

// RecoverPassword asks the identity provider to send a reset email.
// Always succeeds for well-formed input so account existence is not leaked.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "GoTrue.RecoverPassword")
	defer span.End()

	_, status, err := c.doAuthPost(ctx, "recover", map[string]string{"email": email})
	if err != nil {
		return &domain.ErrStoreUnavailable{Op: "auth.recover", Err: err}
	}
	if status >= 500 {
		return &domain.ErrStoreUnavailable{Op: "auth.recover", Err: fmt.Errorf("gotrue returned %d", status)}
	}
	return nil
}

// ResendConfirmation asks the identity provider to resend the sign-up
// confirmation email.
func (c *Client) ResendConfirmation(ctx context.Context, email string) error {
	ctx, span := tracer.Start(ctx, "GoTrue.ResendConfirmation")
	defer span.End()

	_, status, err := c.doAuthPost(ctx, "resend", map[string]string{
		"type":  "signup",
		"email": email,
	})
	if err != nil {
		return &domain.ErrStoreUnavailable{Op: "auth.resend", Err: err}
	}
	if status >= 500 {
		return &domain.ErrStoreUnavailable{Op: "auth.resend", Err: fmt.Errorf("gotrue returned %d", status)}
	}
	return nil
}
