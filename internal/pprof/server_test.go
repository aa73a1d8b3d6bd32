package pprof

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestServerStartStop(t *testing.T) {
	srv := NewServer(zerolog.Nop())

	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if port == 0 || srv.Port() != port {
		t.Fatalf("Start() = %d, Port() = %d", port, srv.Port())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}

	if _, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/", port)); err == nil {
		t.Error("server still reachable after Stop()")
	}
}

func TestStopWithoutStart(t *testing.T) {
	if err := NewServer(zerolog.Nop()).Stop(context.Background()); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf, 12345)

	for _, want := range []string{
		"http://127.0.0.1:12345/debug/pprof/",
		"go tool pprof http://127.0.0.1:12345/debug/pprof/heap",
	} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("PrintUsage() output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestPprofEndpoints(t *testing.T) {
	srv := NewServer(zerolog.Nop())
	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop(context.Background())

	endpoints := []string{
		"/debug/pprof/",
		"/debug/pprof/heap",
		"/debug/pprof/goroutine",
		"/debug/pprof/allocs",
		"/debug/pprof/threadcreate",
	}

	for _, ep := range endpoints {
		t.Run(ep, func(t *testing.T) {
			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, ep))
			if err != nil {
				t.Fatalf("GET %s error: %v", ep, err)
			}
			defer resp.Body.Close()
			if _, err := io.ReadAll(resp.Body); err != nil {
				t.Fatalf("reading response error: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("GET %s status = %d, want 200", ep, resp.StatusCode)
			}
		})
	}
}
