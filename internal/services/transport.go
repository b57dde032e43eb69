package services

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// TraceTransport logs each request and its outcome at debug level.
type TraceTransport struct {
	Base   http.RoundTripper
	Logger *log.Logger
}

// RoundTrip implements [http.RoundTripper].
func (t *TraceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	if t.Logger == nil {
		return resp, err
	}

	if err != nil {
		t.Logger.Debug("request failed", "method", req.Method, "url", req.URL.String(), "elapsed", elapsed, "error", err)
		return resp, err
	}

	t.Logger.Debug("request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "elapsed", elapsed)
	return resp, nil
}

type rateLimitTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base.RoundTrip(req)
}
