package testutil

import (
	"net/http"

	"esgledger/internal/platform/middleware"
)

// WithActor sets the acting directory user the way the upstream gateway does.
// An empty actor leaves the request anonymous.
func WithActor(req *http.Request, actor string) *http.Request {
	if actor != "" {
		req.Header.Set(middleware.ActorHeader, actor)
	}
	return req
}
