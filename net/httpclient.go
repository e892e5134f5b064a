// Package net provides the HTTP transport used by the client, a thin
// wrapper around http.Transport with sane timeout defaults and opentracing
// client spans.
package net

import (
	"net/http"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
)

const (
	tracingTagURL = "http.url"

	defaultIdleConnTimeout = 30 * time.Second
)

// Options are mostly passed to the http.Transport of the same name.
// Options.Timeout can be used as default for all timeouts that are not set.
// You can pass an opentracing.Tracer, which can be nil to get the
// opentracing.NoopTracer.
type Options struct {
	// DisableKeepAlives see https://golang.org/pkg/net/http/#Transport.DisableKeepAlives
	DisableKeepAlives bool
	// ForceAttemptHTTP2 see https://golang.org/pkg/net/http/#Transport.ForceAttemptHTTP2
	ForceAttemptHTTP2 bool
	// MaxIdleConns see https://golang.org/pkg/net/http/#Transport.MaxIdleConns
	MaxIdleConns int
	// MaxIdleConnsPerHost see https://golang.org/pkg/net/http/#Transport.MaxIdleConnsPerHost
	MaxIdleConnsPerHost int
	// Timeout sets all Timeouts, that are set to 0 to the given
	// value. Basically it's the default timeout value.
	Timeout time.Duration
	// TLSHandshakeTimeout see
	// https://golang.org/pkg/net/http/#Transport.TLSHandshakeTimeout,
	// if not set or set to 0, its using Options.Timeout.
	TLSHandshakeTimeout time.Duration
	// IdleConnTimeout see
	// https://golang.org/pkg/net/http/#Transport.IdleConnTimeout,
	// if not set or set to 0, its using Options.Timeout.
	IdleConnTimeout time.Duration
	// ResponseHeaderTimeout see
	// https://golang.org/pkg/net/http/#Transport.ResponseHeaderTimeout,
	// if not set or set to 0, its using Options.Timeout.
	ResponseHeaderTimeout time.Duration
	// ExpectContinueTimeout see
	// https://golang.org/pkg/net/http/#Transport.ExpectContinueTimeout,
	// if not set or set to 0, its using Options.Timeout.
	ExpectContinueTimeout time.Duration
	// Tracer
	Tracer opentracing.Tracer
}

// Transport is an http.RoundTripper that owns its connection pool and
// periodically closes idle connections until Close is called.
type Transport struct {
	tr     *http.Transport
	tracer opentracing.Tracer

	quit      chan struct{}
	closeOnce sync.Once
}

func NewTransport(options Options) *Transport {
	// set default tracer
	if options.Tracer == nil {
		options.Tracer = &opentracing.NoopTracer{}
	}

	// set timeout defaults
	if options.TLSHandshakeTimeout == 0 {
		options.TLSHandshakeTimeout = options.Timeout
	}
	if options.IdleConnTimeout == 0 {
		options.IdleConnTimeout = options.Timeout
	}
	if options.IdleConnTimeout == 0 {
		// the reaper below must not spin
		options.IdleConnTimeout = defaultIdleConnTimeout
	}
	if options.ResponseHeaderTimeout == 0 {
		options.ResponseHeaderTimeout = options.Timeout
	}
	if options.ExpectContinueTimeout == 0 {
		options.ExpectContinueTimeout = options.Timeout
	}

	htransport := &http.Transport{
		DisableKeepAlives:     options.DisableKeepAlives,
		ForceAttemptHTTP2:     options.ForceAttemptHTTP2,
		MaxIdleConns:          options.MaxIdleConns,
		MaxIdleConnsPerHost:   options.MaxIdleConnsPerHost,
		TLSHandshakeTimeout:   options.TLSHandshakeTimeout,
		IdleConnTimeout:       options.IdleConnTimeout,
		ResponseHeaderTimeout: options.ResponseHeaderTimeout,
		ExpectContinueTimeout: options.ExpectContinueTimeout,
	}

	t := &Transport{
		tr:     htransport,
		tracer: options.Tracer,
		quit:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-time.After(options.IdleConnTimeout):
				htransport.CloseIdleConnections()
			case <-t.quit:
				htransport.CloseIdleConnections()
				return
			}
		}
	}()

	return t
}

// implement RoundTripper interface
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.tr.RoundTrip(req)
}

// Do executes the request roundtrip wrapped in a client span named
// spanName, child of the span found in the request context, if any.
func (t *Transport) Do(req *http.Request, spanName string) (*http.Response, error) {
	span := t.startSpan(req, spanName)
	defer span.Finish()

	req = req.WithContext(opentracing.ContextWithSpan(req.Context(), span))

	span.LogKV("http_do", "start")
	rsp, err := t.tr.RoundTrip(req)
	span.LogKV("http_do", "stop")

	return rsp, err
}

// Close stops the idle connection reaper and closes idle connections.
// Closing twice is a no-op.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.quit)
	})
}

func (t *Transport) startSpan(req *http.Request, spanName string) opentracing.Span {
	var span opentracing.Span
	if parent := opentracing.SpanFromContext(req.Context()); parent != nil {
		span = t.tracer.StartSpan(spanName, opentracing.ChildOf(parent.Context()))
	} else {
		span = t.tracer.StartSpan(spanName)
	}
	span.SetTag(tracingTagURL, req.URL.String())
	_ = t.tracer.Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	return span
}
