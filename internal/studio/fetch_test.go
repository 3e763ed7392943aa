package studio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	return buf.Bytes()
}

// loopbackFetcher talks to httptest servers, which listen on 127.0.0.1.
func loopbackFetcher() *ImageFetcher {
	return NewImageFetcher().AllowPrivateNetworks()
}

// fetchCause checks that err is the generic download error and returns the
// logged cause.
func fetchCause(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageUnavailable)
	assert.Equal(t, "could not fetch image", err.Error())

	var fe *fetchError
	require.True(t, errors.As(err, &fe))
	return fe.cause.Error()
}

func TestImageFetcher_Fetch_Success(t *testing.T) {
	imageData := encodedPNG(t)
	var handlerCalled bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	}))
	defer ts.Close()

	img, err := loopbackFetcher().Fetch(context.Background(), ts.URL+"/model.png")
	require.NoError(t, err)
	assert.True(t, handlerCalled)
	assert.Equal(t, imageData, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestImageFetcher_Fetch_SniffsMislabeledImage(t *testing.T) {
	imageData := encodedPNG(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(imageData)
	}))
	defer ts.Close()

	img, err := loopbackFetcher().Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestImageFetcher_Fetch_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := loopbackFetcher().Fetch(context.Background(), ts.URL)
	assert.Contains(t, fetchCause(t, err), "status 404")
}

func TestImageFetcher_Fetch_InvalidContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	_, err := loopbackFetcher().Fetch(context.Background(), ts.URL)
	assert.Contains(t, fetchCause(t, err), "invalid content type")
}

func TestImageFetcher_Fetch_TooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, 2048))
	}))
	defer ts.Close()

	_, err := loopbackFetcher().WithMaxSize(1024).Fetch(context.Background(), ts.URL)
	assert.Contains(t, fetchCause(t, err), "image too large")
}

func TestImageFetcher_Fetch_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(encodedPNG(t))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loopbackFetcher().Fetch(ctx, ts.URL)
	assert.Contains(t, fetchCause(t, err), "failed to download image")
}

func TestImageFetcher_Fetch_RejectsLoopbackByDefault(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(encodedPNG(t))
	}))
	defer ts.Close()

	for _, target := range []string{
		ts.URL + "/admin",
		strings.Replace(ts.URL, "127.0.0.1", "localhost", 1) + "/admin",
	} {
		_, err := NewImageFetcher().Fetch(context.Background(), target)
		assert.Contains(t, fetchCause(t, err), "address not allowed", target)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestImageFetcher_Fetch_RejectsNonHTTPURLs(t *testing.T) {
	tests := []struct {
		url   string
		cause string
	}{
		{"file:///etc/passwd", "unsupported url scheme"},
		{"ftp://example.com/model.png", "unsupported url scheme"},
		{"gopher://example.com/", "unsupported url scheme"},
		{"http:///model.png", "url has no host"},
		{"://missing-scheme", "invalid url"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := loopbackFetcher().Fetch(context.Background(), tt.url)
			assert.Contains(t, fetchCause(t, err), tt.cause)
		})
	}
}

func TestImageFetcher_Fetch_CapsRedirects(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer ts.Close()

	_, err := loopbackFetcher().Fetch(context.Background(), ts.URL)
	assert.Contains(t, fetchCause(t, err), "stopped after 3 redirects")
	assert.LessOrEqual(t, hits.Load(), int32(DefaultMaxRedirects+1))
}

func TestImageFetcher_CheckAddress(t *testing.T) {
	f := NewImageFetcher()
	tests := []struct {
		address string
		allowed bool
	}{
		{"127.0.0.1:80", false},
		{"[::1]:443", false},
		{"10.1.2.3:80", false},
		{"172.16.0.1:80", false},
		{"192.168.1.10:8080", false},
		{"169.254.169.254:80", false},
		{"[fe80::1]:80", false},
		{"[fc00::1]:80", false},
		{"100.64.0.1:80", false},
		{"0.0.0.0:80", false},
		{"[::ffff:127.0.0.1]:80", false},
		{"224.0.0.1:80", false},
		{"not-an-address", false},
		{"8.8.8.8:443", true},
		{"[2001:4860:4860::8888]:443", true},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := f.checkAddress("tcp", tt.address, nil)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errBlockedAddress)
			}
		})
	}

	assert.NoError(t, NewImageFetcher().AllowPrivateNetworks().checkAddress("tcp", "127.0.0.1:80", nil))
}

func TestPublicIP(t *testing.T) {
	assert.True(t, publicIP(net.ParseIP("93.184.216.34")))
	assert.False(t, publicIP(net.ParseIP("100.127.255.255")))
	assert.True(t, publicIP(net.ParseIP("100.128.0.1")))
}
