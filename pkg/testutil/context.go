package testutil

import (
	"net/http"

	id "visitledger/pkg/domain"
	"visitledger/pkg/requestcontext"
)

// WithCaller attaches caller to the request context.
// This simulates what the auth middleware does for authenticated requests.
func WithCaller(req *http.Request, caller id.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithRequestID attaches a request ID, as the request ID middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
