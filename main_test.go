package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksfetch/internal/dialer"
	"github.com/die-net/socksfetch/internal/fetch"
	"github.com/die-net/socksfetch/internal/testutil"
)

func TestParseTCPKeepAlive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    net.KeepAliveConfig
		wantErr bool
	}{
		{in: "on", want: net.KeepAliveConfig{Enable: true}},
		{in: " OFF ", want: net.KeepAliveConfig{}},
		{in: "45:45:3", want: net.KeepAliveConfig{Enable: true, Idle: 45 * time.Second, Interval: 45 * time.Second, Count: 3}},
		{in: "10: 5 :2", want: net.KeepAliveConfig{Enable: true, Idle: 10 * time.Second, Interval: 5 * time.Second, Count: 2}},
		{in: "", wantErr: true},
		{in: "45:45", wantErr: true},
		{in: "0:45:3", wantErr: true},
		{in: "45:x:3", wantErr: true},
		{in: "45:45:-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseTCPKeepAlive(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestDefaultProxy(t *testing.T) {
	t.Setenv("ALL_PROXY", "")
	t.Setenv("all_proxy", "")
	if got := defaultProxy(); got != "socks5h://127.0.0.1:9050" {
		t.Fatalf("got %q", got)
	}

	t.Setenv("all_proxy", "socks5://lower:1080")
	if got := defaultProxy(); got != "socks5://lower:1080" {
		t.Fatalf("got %q", got)
	}

	t.Setenv("ALL_PROXY", "socks5h://upper:1080")
	if got := defaultProxy(); got != "socks5h://upper:1080" {
		t.Fatalf("got %q", got)
	}
}

func TestCheckOutputNames(t *testing.T) {
	t.Parallel()

	if err := checkOutputNames([]string{"https://a.example/", "https://b.example/x.html"}); err != nil {
		t.Fatal(err)
	}
	if err := checkOutputNames([]string{"https://a.example/", "https://b.example"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if err := checkOutputNames([]string{"gopher://a.example/"}); err == nil {
		t.Fatal("expected invalid url error")
	}
}

func TestRunFetch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad.html") {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	proxy := testutil.StartSOCKS5Server(t, ctx)
	d, err := dialer.New(dialer.Config{DialTimeout: time.Second, NegotiationTimeout: time.Second}, "socks5h://"+proxy.Addr())
	if err != nil {
		t.Fatal(err)
	}
	f, err := fetch.New(fetch.Config{Dialer: d})
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	urls := []string{srv.URL + "/one.html", srv.URL + "/two.html", srv.URL + "/bad.html"}
	err = runFetch(ctx, zap.NewNop(), f, urls, dir, 2)
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusGone {
		t.Fatalf("expected 410 StatusError, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "1 of 3 fetches failed") {
		t.Fatalf("unexpected error %q", err)
	}

	for _, name := range []string{"one.html", "two.html"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != "/"+name {
			t.Fatalf("%s: unexpected contents %q", name, b)
		}
	}
	if len(proxy.Targets()) != 3 {
		t.Fatalf("expected 3 proxied requests, got %v", proxy.Targets())
	}
}
