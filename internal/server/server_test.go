package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/openboard/openboard/internal/logging"
)

func TestShutdownDrainsInflightRequests(t *testing.T) {
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		httpServer: &http.Server{Handler: handler},
		log:        logging.NewDefault(),
	}
	go func() { _ = s.httpServer.Serve(ln) }()

	type result struct {
		code int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			resCh <- result{err: err}
			return
		}
		resp.Body.Close()
		resCh <- result{code: resp.StatusCode}
	}()

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	res := <-resCh
	if res.err != nil {
		t.Fatalf("in-flight request dropped: %v", res.err)
	}
	if res.code != http.StatusOK {
		t.Fatalf("want in-flight request to finish with 200, got %d", res.code)
	}
}
