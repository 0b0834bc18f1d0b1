package api

import (
	"errors"
	"net"
	"net/url"

	"github.com/mselser95/marketview/pkg/types"
)

// IsNetworkError reports whether err means the backend could not be reached,
// as opposed to the backend answering with an error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Message returns the text to show a user for err: the backend message for
// API errors, the error string otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return err.Error()
}
