package net

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))
	t.Cleanup(server.Close)

	tr := NewTransport(Options{Timeout: time.Second})
	defer tr.Close()

	req, err := http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)

	rsp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, 204, rsp.StatusCode)
}

func TestTransportDoCreatesSpan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)

	tracer := mocktracer.New()
	tr := NewTransport(Options{Timeout: time.Second, Tracer: tracer})
	defer tr.Close()

	req, err := http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)

	rsp, err := tr.Do(req, "test_span")
	require.NoError(t, err)
	rsp.Body.Close()

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "test_span", spans[0].OperationName)
	assert.Equal(t, server.URL, spans[0].Tag("http.url"))
}

func TestTransportCloseTwice(t *testing.T) {
	tr := NewTransport(Options{Timeout: time.Second})
	tr.Close()
	tr.Close()
}
