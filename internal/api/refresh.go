package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nhle/collabtask/internal/model"
)

const refreshPath = "/auth/refresh"

// refresh returns an access token newer than stale. If another caller has
// already rotated the credential the current token is returned without a
// network call; otherwise every caller joins one shared refresh.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	current := c.session.AccessToken()
	if current == "" {
		return "", &SessionExpiredError{Cause: errors.New("credential cleared during refresh")}
	}
	if current != stale {
		return current, nil
	}

	// The shared refresh outlives any one caller: a cancelled waiter must
	// not abort the rotation the others are waiting on.
	shared := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan("refresh", func() (interface{}, error) {
		return c.rotate(shared, stale)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for token refresh: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// rotate exchanges the refresh token for a new pair and installs it. Any
// failure ends the session.
func (c *Client) rotate(ctx context.Context, stale string) (string, error) {
	if current := c.session.AccessToken(); current != "" && current != stale {
		return current, nil
	}

	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		return "", c.expire(errors.New("no refresh token"))
	}

	body := map[string]string{"refresh_token": refreshToken}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", c.expire(fmt.Errorf("marshaling refresh body: %w", err))
	}

	raw, err := c.send(ctx, http.MethodPost, refreshPath, refreshPath, payload, stale)
	if err != nil {
		return "", c.expire(fmt.Errorf("refreshing token: %w", err))
	}

	res, err := c.finish(http.MethodPost, refreshPath, raw)
	if err != nil {
		return "", c.expire(fmt.Errorf("refreshing token: %w", err))
	}

	var pair model.TokenPair
	if err := json.Unmarshal(res.Data, &pair); err != nil || pair.AccessToken == "" {
		return "", c.expire(errors.New("refresh response carried no access token"))
	}

	if err := c.session.Rotate(pair.AccessToken, pair.RefreshToken); err != nil {
		return "", c.expire(err)
	}

	c.logger.Info("access token refreshed")
	return pair.AccessToken, nil
}

func (c *Client) expire(cause error) error {
	c.logger.Warn("token refresh failed", zap.Error(cause))
	c.session.End(cause)
	return &SessionExpiredError{Cause: cause}
}
