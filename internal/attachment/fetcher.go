// Package attachment resolves remote images and icons to local files.
package attachment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/pkg/circuitbreaker"
	"beacon/pkg/errors"
	"beacon/pkg/metrics"
)

// Fetcher downloads attachments into a content cache keyed by the SHA-256 of the
// URL (or of a caller-chosen key). Entries older than the caller's expiration are
// refetched.
type Fetcher struct {
	client    *http.Client
	breaker   *circuitbreaker.Wrapper
	cacheDir  string
	outputDir string
	maxBytes  int64
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithCircuitBreaker(w *circuitbreaker.Wrapper) Option {
	return func(f *Fetcher) { f.breaker = w }
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(cfg config.AttachmentsConfig, log logger.Logger, opts ...Option) *Fetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxAttachmentBytes
	}
	f := &Fetcher{
		client:    &http.Client{Timeout: timeout},
		cacheDir:  cfg.CacheDir,
		outputDir: cfg.OutputDir,
		maxBytes:  maxBytes,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the cached file for rawURL, downloading it when the cache entry
// is missing or older than expirationDays. expirationDays <= 0 always downloads.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, expirationDays int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.ErrValidation.WithMessage(fmt.Sprintf("not a fetchable url: %q", rawURL))
	}

	target := f.cachePath(rawURL, path.Ext(u.Path))
	if f.fresh(target, expirationDays) {
		metrics.IncAttachmentCache("hit")
		return target, nil
	}
	metrics.IncAttachmentCache("miss")

	data, err := circuitbreaker.Do(ctx, f.breaker, func() ([]byte, error) {
		return f.download(ctx, rawURL)
	})
	if err != nil {
		return "", errors.ErrFetch.WithCause(err).WithDetail("url", rawURL)
	}

	if err := f.writeAtomic(target, data); err != nil {
		return "", err
	}

	metrics.ObserveAttachmentSize(len(data))
	f.logger.DebugwCtx(ctx, "Fetched attachment",
		"url", rawURL,
		"size", humanize.Bytes(uint64(len(data))),
	)
	return target, nil
}

// Lookup finds a previously stored entry for key.
func (f *Fetcher) Lookup(key string, expirationDays int) (string, bool) {
	matches, _ := filepath.Glob(f.cachePath(key, "") + "*")
	for _, m := range matches {
		if f.fresh(m, expirationDays) {
			metrics.IncAttachmentCache("hit")
			return m, true
		}
	}
	metrics.IncAttachmentCache("miss")
	return "", false
}

// Store writes data into the cache under key, e.g. an icon name resolved from the cloud store.
func (f *Fetcher) Store(key string, data []byte) (string, error) {
	target := f.cachePath(key, sniffExt(data))
	if err := f.writeAtomic(target, data); err != nil {
		return "", err
	}
	return target, nil
}

// Attach copies a cache entry into the output directory. Delivered attachments may
// be moved or deleted by their consumer; the cache entry must survive that.
func (f *Fetcher) Attach(src string) (string, error) {
	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}
	out, err := os.CreateTemp(f.outputDir, "att-*"+filepath.Ext(src))
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	dst := out.Name()
	_ = out.Close()
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("attachment larger than %s", humanize.Bytes(uint64(f.maxBytes)))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

func (f *Fetcher) cachePath(key, ext string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:])+strings.ToLower(ext))
}

func (f *Fetcher) fresh(path string, expirationDays int) bool {
	if expirationDays <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	return f.now().Before(info.ModTime().UTC().AddDate(0, 0, expirationDays))
}

func (f *Fetcher) writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".fetch-*")
	if err != nil {
		return fmt.Errorf("create cache temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

func sniffExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}
