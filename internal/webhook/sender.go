// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/olegiv/gymsite/internal/version"
)

// MaxResponseLen caps how much of a downstream response body is kept.
const MaxResponseLen = 64 * 1024

// UserAgent is sent on every outbound call.
var UserAgent = "gymsite-webhook/" + version.Version

// ErrTimeout marks a call that hit its deadline before a response arrived.
var ErrTimeout = errors.New("webhook call timed out")

// Response is a completed downstream exchange, successful or not.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender posts JSON payloads with a bounded timeout.
type Sender struct {
	client  *http.Client
	timeout time.Duration
	secret  string
}

// NewSender creates a Sender. When secret is non-empty every payload is
// signed in SignatureHeader.
func NewSender(timeout time.Duration, secret string) *Sender {
	return &Sender{
		client: &http.Client{
			// Per-call deadlines come from the context; this is the backstop.
			Timeout: timeout + time.Second,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		timeout: timeout,
		secret:  secret,
	}
}

// Timeout returns the per-call deadline.
func (s *Sender) Timeout() time.Duration {
	return s.timeout
}

// PostJSON sends payload to url. A non-2xx answer is returned as a Response
// with a nil error; transport failures return an error, wrapping ErrTimeout
// when the deadline was hit.
func (s *Sender) PostJSON(ctx context.Context, url string, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if s.secret != "" {
		req.Header.Set(SignatureHeader, GenerateSignature(payload, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	if err != nil {
		if IsTimeout(err) {
			return nil, fmt.Errorf("%w: reading body: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
