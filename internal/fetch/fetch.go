// Package fetch downloads publicly shared Google Drive files.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/fileutil"
	"github.com/ZacxDev/reelbatch/internal/logging"
)

var (
	ErrUnresolvable = errors.New("cannot extract file id from reference")
	ErrNotFound     = errors.New("file not found")
	ErrAccessDenied = errors.New("access denied; share the file with anyone who has the link")
	ErrTimeout      = errors.New("download timed out")
)

const (
	DefaultBaseURL     = "https://drive.google.com"
	DefaultTimeout     = 5 * time.Minute
	DefaultConcurrency = 3
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Request names one remote asset and where to store it. The file is written
// to Dir/Name plus an extension detected from the response, or DefaultExt.
type Request struct {
	Ref        string
	Dir        string
	Name       string
	DefaultExt string
}

// Asset is a successfully downloaded file.
type Asset struct {
	Ref      string
	Path     string
	FileName string // remote file name when the server reports one
	Size     int64
}

type Failure struct {
	Ref string
	Err error
}

// Results holds the outcome of FetchMany in request order.
type Results struct {
	Succeeded []Asset
	Failed    []Failure
}

// OK reports whether every request succeeded.
func (r Results) OK() bool {
	return len(r.Failed) == 0
}

type Option func(*Fetcher)

func WithBaseURL(base string) Option {
	return func(f *Fetcher) {
		if base != "" {
			f.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logging.NewComponentLogger(logger, "fetch")
	}
}

// Fetcher downloads files by Drive reference.
type Fetcher struct {
	baseURL     string
	timeout     time.Duration
	userAgent   string
	concurrency int
	client      *http.Client
	logger      *slog.Logger
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:     DefaultBaseURL,
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		concurrency: DefaultConcurrency,
		client:      &http.Client{},
		logger:      logging.NewComponentLogger(nil, "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads one asset. The direct download URL is tried first; an HTML
// interstitial or a 403 triggers one retry with the confirmation URL.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Asset, error) {
	id, err := ResolveFileID(req.Ref)
	if err != nil {
		return Asset{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	logger := f.logger.With(logging.String(logging.FieldURL, req.Ref), logging.String("file_id", id))
	logger.Debug("downloading asset")

	resp, err := f.get(ctx, f.directURL(id))
	if err != nil {
		return Asset{}, f.classifyTransportError(ctx, err, id)
	}
	if resp.StatusCode == http.StatusForbidden || (resp.StatusCode == http.StatusOK && isHTML(resp)) {
		drain(resp)
		logger.Debug("confirmation page detected, retrying with confirm url")
		resp, err = f.get(ctx, f.confirmURL(id))
		if err != nil {
			return Asset{}, f.classifyTransportError(ctx, err, id)
		}
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Asset{}, errors.Wrapf(ErrNotFound, "file %s", id)
	case resp.StatusCode == http.StatusForbidden:
		return Asset{}, errors.Wrapf(ErrAccessDenied, "file %s", id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Asset{}, errors.Errorf("download file %s: unexpected status %d", id, resp.StatusCode)
	case isHTML(resp):
		return Asset{}, errors.Wrapf(ErrAccessDenied, "file %s returned an html page", id)
	}

	remoteName := remoteFileName(resp)
	ext := detectExtension(resp, remoteName, req.DefaultExt)
	dst := filepath.Join(req.Dir, req.Name+ext)

	size, err := writeBody(dst, resp.Body)
	if err != nil {
		_ = fileutil.RemoveIfExists(dst)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Asset{}, f.classifyTransportError(ctx, ctxErr, id)
		}
		return Asset{}, errors.Wrapf(err, "save file %s", id)
	}

	if remoteName == "" {
		remoteName = filepath.Base(dst)
	}
	logger.Debug("downloaded asset", logging.String(logging.FieldPath, dst), logging.Int64("size_bytes", size))
	return Asset{Ref: req.Ref, Path: dst, FileName: remoteName, Size: size}, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	return f.client.Do(req)
}

func (f *Fetcher) directURL(id string) string {
	return f.baseURL + "/uc?export=download&id=" + url.QueryEscape(id)
}

func (f *Fetcher) confirmURL(id string) string {
	return f.baseURL + "/uc?export=download&confirm=t&id=" + url.QueryEscape(id)
}

func (f *Fetcher) classifyTransportError(ctx context.Context, err error, id string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrapf(ErrTimeout, "file %s after %s", id, f.timeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(ErrTimeout, "file %s", id)
	}
	return errors.Wrapf(err, "download file %s", id)
}

func writeBody(dst string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, body)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}

func isHTML(resp *http.Response) bool {
	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html")
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
