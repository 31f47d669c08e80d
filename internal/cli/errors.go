package cli

import (
	"errors"

	"github.com/nhle/collabtask/internal/api"
)

var errNotLoggedIn = errors.New("not logged in; run `collabtask login` first")

// Describe turns err into the line shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errNotLoggedIn):
		return err.Error()
	case api.IsSessionExpired(err):
		return "Session expired. Run `collabtask login` to sign in again."
	case api.IsTimeout(err):
		return "The server took too long to answer. Try again."
	}

	var reqErr *api.RequestError
	if errors.As(err, &reqErr) {
		return api.UserMessage(err)
	}
	return err.Error()
}
