package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConcurrencyMiddleware_RejectsWhenStreamsAreFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once

	// handler que segura a vaga até liberarmos (como um stream aberto).
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedOnce.Do(func() { close(started) })
		<-release
		w.WriteHeader(http.StatusOK)
	})

	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 25 * time.Millisecond,
	})(next)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w1 := httptest.NewRecorder()
		h.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "http://example/updates", nil))
		if w1.Code != http.StatusOK {
			t.Errorf("expected first request 200, got %d", w1.Code)
		}
	}()

	select {
	case <-started:
	case <-time.After(200 * time.Millisecond):
		close(release)
		wg.Wait()
		t.Fatalf("timeout waiting first request to start")
	}

	// a segunda roda no goroutine do teste: precisa terminar por timeout
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "http://example/updates", nil))
	if w2.Code != http.StatusServiceUnavailable {
		t.Errorf("expected second request 503, got %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), `"code":4001`) {
		t.Errorf("expected unavailable error body, got %q", w2.Body.String())
	}

	close(release)
	wg.Wait()

	// vaga liberada: o próximo passa
	w3 := httptest.NewRecorder()
	h.ServeHTTP(w3, httptest.NewRequest(http.MethodGet, "http://example/updates", nil))
	if w3.Code != http.StatusOK {
		t.Fatalf("expected request after release to pass, got %d", w3.Code)
	}
}

func TestConcurrencyMiddleware_CanceledClientGetsNoResponse(t *testing.T) {
	hold := make(chan struct{})
	started := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-hold
	})
	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 1})(next)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	if w.Body.Len() != 0 {
		t.Fatalf("expected no body for a canceled client, got %q", w.Body.String())
	}

	close(hold)
	<-done
}

func TestConcurrencyMiddleware_DisabledWhenMaxIsZero(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ })
	h := ConcurrencyMiddleware(ConcurrencyOptions{})(next)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if calls != 1 {
		t.Fatalf("expected passthrough, got %d calls", calls)
	}
}
