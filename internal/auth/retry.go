package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// TokenReply is the normalized reply of a token endpoint. Each strategy
// parses its own wire format into this shape, so the Manager never sees
// mode-specific field names.
type TokenReply struct {
	// OK is true iff the backend accepted the request and issued a token.
	OK bool

	StatusCode   int
	AccessToken  string
	RefreshToken string

	// ExpiresIn is the declared token lifetime in seconds. Zero for tokens
	// that never expire.
	ExpiresIn int64

	// Errors holds the backend-reported error strings when OK is false.
	Errors []string
}

// requestFunc performs a single token request. A non-nil reply means a
// response arrived and its body parsed as structured data, even if the
// backend rejected the credentials. Transport errors and unparseable bodies
// are returned as errors and are subject to retry.
type requestFunc func(ctx context.Context) (*TokenReply, error)

// requestWithRetries invokes fn up to retries+1 times, sleeping wait between
// attempts. It returns on the first reply, successful or not: a rejection
// would only repeat, so it is not worth retrying. When every attempt fails
// at the transport level, the failure is normalized into a reply-shaped
// value instead of an error, so callers always get a reply.
func requestWithRetries(ctx context.Context, fn requestFunc, retries int, wait time.Duration, logger *slog.Logger) *TokenReply {
	if retries < 0 {
		retries = 0
	}

	reply, err := retry.NewWithData[*TokenReply](
		retry.Context(ctx),
		retry.Attempts(uint(retries)+1),
		retry.Delay(wait),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("token request failed, retrying",
				"attempt", n+1,
				"error", err,
			)
		}),
	).Do(func() (*TokenReply, error) {
		return fn(ctx)
	})
	if err != nil {
		return &TokenReply{
			StatusCode: http.StatusBadRequest,
			Errors: []string{
				"Could not connect to authentication server",
				fmt.Sprintf("Number of retries: %d", retries),
				fmt.Sprintf("Exception: %v", err),
			},
		}
	}
	return reply
}
