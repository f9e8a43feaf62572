package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/die-net/socksfetch/internal/dialer"
	"github.com/die-net/socksfetch/internal/testutil"
)

func newSOCKS5Fetcher(t *testing.T, ctx context.Context, tlsConfig *tls.Config) (*Fetcher, *testutil.SOCKS5Server) {
	t.Helper()

	proxy := testutil.StartSOCKS5Server(t, ctx)
	d, err := dialer.NewSOCKS5ProxyDialer(dialer.Config{DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second}, proxy.Addr(), false)
	if err != nil {
		t.Fatal(err)
	}

	f, err := New(Config{Dialer: d, NegotiationTimeout: 2 * time.Second, TLSConfig: tlsConfig, UserAgent: "socksfetch-test"})
	if err != nil {
		t.Fatal(err)
	}
	return f, proxy
}

func TestFetchThroughSOCKS5(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gotReq := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq <- r.Clone(context.Background())
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	f, proxy := newSOCKS5Fetcher(t, ctx, nil)

	var buf bytes.Buffer
	res, err := f.Fetch(ctx, srv.URL+"/", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK || res.Bytes != int64(buf.Len()) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if buf.String() != "<html>hello</html>" {
		t.Fatalf("unexpected body %q", buf.String())
	}

	r := <-gotReq
	if ua := r.Header.Get("User-Agent"); ua != "socksfetch-test" {
		t.Fatalf("unexpected User-Agent %q", ua)
	}
	if !r.Close || r.ProtoMajor != 1 || r.ProtoMinor != 1 {
		t.Fatalf("expected HTTP/1.1 with Connection: close, got %s close=%v", r.Proto, r.Close)
	}

	seen := proxy.Targets()
	if len(seen) != 1 || seen[0] != srv.Listener.Addr().String() {
		t.Fatalf("proxy saw %v, want [%s]", seen, srv.Listener.Addr())
	}
}

func TestFetchTLSThroughSOCKS5(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ProtoMajor != 1 {
			t.Errorf("expected HTTP/1.x, got %s", r.Proto)
		}
		_, _ = w.Write([]byte("secure"))
	}))
	defer srv.Close()

	roots := srv.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs
	f, _ := newSOCKS5Fetcher(t, ctx, &tls.Config{RootCAs: roots})

	var buf bytes.Buffer
	if _, err := f.Fetch(ctx, srv.URL, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "secure" {
		t.Fatalf("unexpected body %q", buf.String())
	}
}

func TestFetchTLSUntrusted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f, _ := newSOCKS5Fetcher(t, ctx, nil)

	if _, err := f.Fetch(ctx, srv.URL, &bytes.Buffer{}); err == nil {
		t.Fatal("expected certificate error")
	}
}

func TestFetchToFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "not here", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("index"))
	}))
	defer srv.Close()

	dir := t.TempDir()

	f, _ := newSOCKS5Fetcher(t, ctx, nil)
	res, err := f.FetchToFile(ctx, srv.URL, dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != filepath.Join(dir, DefaultOutputName) {
		t.Fatalf("unexpected path %q", res.Path)
	}
	b, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "index" {
		t.Fatalf("unexpected file contents %q", b)
	}

	f, _ = newSOCKS5Fetcher(t, ctx, nil)
	res, err = f.FetchToFile(ctx, srv.URL+"/missing", dir)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if res == nil || res.Path != filepath.Join(dir, "missing") {
		t.Fatalf("expected saved error body, got %+v", res)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatal(err)
	}
}

func TestFetchToFileDialFailureRemovesFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir := t.TempDir()
	f, _ := newSOCKS5Fetcher(t, ctx, nil)

	// Port 1 on loopback is closed, so the proxy reports host unreachable.
	if _, err := f.FetchToFile(ctx, "http://127.0.0.1:1/page.html", dir); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "page.html")); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed, got %v", err)
	}
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://www.kali.org", want: "response.html"},
		{url: "https://www.kali.org/", want: "response.html"},
		{url: "https://www.kali.org/docs/", want: "response.html"},
		{url: "https://www.kali.org/get-kali/index.html", want: "index.html"},
		{url: "HTTP://example.com/a/b?x=1", want: "b"},
		{url: "https://example.com/..", want: "response.html"},
		{url: "ftp://example.com/file", wantErr: true},
		{url: "example.com/file", wantErr: true},
		{url: "https:///file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			got, err := OutputName(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresDialer(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewTransportRaisesMinVersion(t *testing.T) {
	t.Parallel()

	d, err := dialer.NewDirectDialer(dialer.Config{})
	if err != nil {
		t.Fatal(err)
	}
	tr := newTransport(Config{Dialer: d, TLSConfig: &tls.Config{MinVersion: tls.VersionTLS10}})
	if tr.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Fatalf("MinVersion %x", tr.TLSClientConfig.MinVersion)
	}
	if !tr.DisableKeepAlives {
		t.Fatal("expected keepalives disabled")
	}
}
