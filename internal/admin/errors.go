package admin

import "errors"

var (
	errEmptyURL   = errors.New("URL is required")
	errInvalidURL = errors.New("URL must be a valid http or https address")
)
