package api

import (
	"context"
	"fmt"

	"github.com/nhle/collabtask/internal/model"
)

// SignupInput is the body of POST /auth/signup.
type SignupInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginChallenge is returned by the first login step. The OTP sent to the
// user's email is verified against UserID.
type LoginChallenge struct {
	model.User
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	var user model.User
	if err := c.Post(ctx, "/auth/signup", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LoginInitiate checks the password and triggers the OTP email.
func (c *Client) LoginInitiate(ctx context.Context, email, password string) (*LoginChallenge, error) {
	body := map[string]string{"email": email, "password": password}

	var challenge LoginChallenge
	if err := c.Post(ctx, "/auth/login/initiate", body, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// VerifyOTP completes login. The returned token pair is installed in the
// session together with the user profile.
func (c *Client) VerifyOTP(ctx context.Context, challenge LoginChallenge, otp string) (*model.Credential, error) {
	body := map[string]string{"user_id": challenge.ID, "otp": otp}

	var pair model.TokenPair
	if err := c.Post(ctx, "/auth/otp/verify", body, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("verify otp: response carried no access token")
	}

	user := challenge.User
	if pair.User != nil {
		user = *pair.User
	}

	cred := model.Credential{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	}
	if err := c.session.Login(cred); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}
	return &cred, nil
}

// ForgotPasswordInitiate sends a reset OTP to email.
func (c *Client) ForgotPasswordInitiate(ctx context.Context, email string) error {
	return c.Post(ctx, "/auth/forgot-password/initiate", map[string]string{"email": email}, nil)
}

// ForgotPasswordVerify sets a new password using the emailed OTP.
func (c *Client) ForgotPasswordVerify(ctx context.Context, email, otp, newPassword string) error {
	body := map[string]string{
		"email":        email,
		"otp":          otp,
		"new_password": newPassword,
	}
	return c.Post(ctx, "/auth/forgot-password/verify", body, nil)
}

// Refresh forces a token refresh outside the automatic path. Concurrent
// automatic refreshes are joined.
func (c *Client) Refresh(ctx context.Context) error {
	token := c.session.AccessToken()
	if token == "" {
		return &SessionExpiredError{Cause: fmt.Errorf("not logged in")}
	}
	_, err := c.refresh(ctx, token)
	return err
}

// Logout revokes the refresh session on the server and clears the local
// credential. The local credential is cleared even when the server call
// fails.
func (c *Client) Logout(ctx context.Context) error {
	token := c.session.AccessToken()

	var callErr error
	if token != "" {
		callErr = c.Post(ctx, "/auth/logout", struct{}{}, nil, WithToken(token))
	}

	if err := c.session.Clear(); err != nil {
		return err
	}
	return callErr
}
