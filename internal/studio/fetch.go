package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultFetchTimeout is the default timeout for image downloads
	DefaultFetchTimeout = 30 * time.Second
	// DefaultMaxImageSize is the default maximum image size (15MB)
	DefaultMaxImageSize = 15 * 1024 * 1024
	// DefaultMaxRedirects caps how many redirects a download may follow
	DefaultMaxRedirects = 3
)

// ErrImageUnavailable is returned for every failed download. The cause is
// logged, not returned to the caller.
var ErrImageUnavailable = errors.New("could not fetch image")

var errBlockedAddress = errors.New("address not allowed")

// 100.64.0.0/10, carrier-grade NAT
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// fetchError hides its cause from Error() but keeps it for errors.Is.
type fetchError struct {
	cause error
}

func (e *fetchError) Error() string        { return ErrImageUnavailable.Error() }
func (e *fetchError) Is(target error) bool { return target == ErrImageUnavailable }
func (e *fetchError) Unwrap() error        { return e.cause }

// ImageFetcher downloads images referenced by URL. Only http and https
// URLs are accepted and connections to loopback, private, link-local and
// other non-public addresses are refused, including after redirects.
type ImageFetcher struct {
	client       *resty.Client
	maxSize      int64
	allowPrivate bool
}

// NewImageFetcher creates a new ImageFetcher with default settings.
func NewImageFetcher() *ImageFetcher {
	f := &ImageFetcher{maxSize: DefaultMaxImageSize}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   f.checkAddress,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	f.client = resty.New().
		SetDebug(false).
		SetTimeout(DefaultFetchTimeout).
		SetTransport(transport).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(DefaultMaxRedirects))
	return f
}

// WithTimeout sets a custom timeout for downloads.
func (f *ImageFetcher) WithTimeout(timeout time.Duration) *ImageFetcher {
	f.client.SetTimeout(timeout)
	return f
}

// WithMaxSize sets a custom maximum file size.
func (f *ImageFetcher) WithMaxSize(maxSize int64) *ImageFetcher {
	f.maxSize = maxSize
	return f
}

// AllowPrivateNetworks lifts the address restriction. Intended for local
// development and tests against loopback servers.
func (f *ImageFetcher) AllowPrivateNetworks() *ImageFetcher {
	f.allowPrivate = true
	return f
}

// Fetch downloads an image and enforces the size limit and an image
// content type. Any failure is reported as ErrImageUnavailable.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (fitting.Image, error) {
	img, err := f.fetch(ctx, imageURL)
	if err != nil {
		log.Debug().Err(err).Str("url", imageURL).Msg("image download failed")
		return fitting.Image{}, &fetchError{cause: err}
	}
	return img, nil
}

func (f *ImageFetcher) fetch(ctx context.Context, imageURL string) (fitting.Image, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return fitting.Image{}, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fitting.Image{}, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fitting.Image{}, fmt.Errorf("url has no host")
	}

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return fitting.Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		return fitting.Image{}, fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return fitting.Image{}, fmt.Errorf("invalid content type: expected image/*, got %s", contentType)
	}

	// LimitReader enforces the limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return fitting.Image{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return fitting.Image{}, fmt.Errorf("image too large: exceeds limit of %d bytes", f.maxSize)
	}

	mimeType := fitting.DetectMIMEType(data)
	if mimeType == "" {
		if contentType == "" {
			return fitting.Image{}, fmt.Errorf("downloaded data is not an image")
		}
		mimeType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}

	log.Debug().Str("url", imageURL).Int("bytes", len(data)).Str("mimeType", mimeType).Msg("fetched image")
	return fitting.Image{Data: data, MIMEType: mimeType}, nil
}

// checkAddress runs for every outgoing connection, after DNS resolution.
func (f *ImageFetcher) checkAddress(network, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !publicIP(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	return nil
}

// publicIP reports whether ip is a globally routable unicast address.
func publicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		sharedAddressSpace.Contains(ip))
}
