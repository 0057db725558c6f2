// Package fetch implements the Fetcher (spec §4.3): a bounded-
// concurrency downloader that turns broker.FileDescriptor values into
// local files, handing each a ReadyFile event as it lands.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/bgpstream-engine/bgpstream/broker"
	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

// ReadyFile is emitted once a descriptor's file is available locally,
// whether freshly downloaded or found already cached (spec §4.3 step 4).
type ReadyFile struct {
	Descriptor broker.FileDescriptor
	Path       string
}

// Options configures a Fetcher.
type Options struct {
	MaxConcurrentDownloads int
	TargetDir              string // parent tempdir or cache_dir
	CacheMode              bool   // spec §4.3 step 2: "cache mode active"
	HTTPClient             *http.Client
	Retry                  retry.Policy
	Logger                 *zerolog.Logger
}

// Fetcher downloads archive files named by broker.FileDescriptor,
// bounded by a semaphore sized to MaxConcurrentDownloads (spec §4.3,
// §5 "Fetcher workers execute in parallel").
type Fetcher struct {
	*zerolog.Logger
	opts Options
	sem  *semaphore.Weighted
}

// New returns a Fetcher. A zero-valued HTTPClient/Retry/Logger field
// is replaced with the package defaults.
func New(opts Options) *Fetcher {
	if opts.MaxConcurrentDownloads <= 0 {
		opts.MaxConcurrentDownloads = 10
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = retry.Default
	}
	if opts.Logger == nil {
		opts.Logger = &log.Logger
	}
	return &Fetcher{
		Logger: opts.Logger,
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrentDownloads)),
	}
}

// CachePath computes <target_dir>/<collector>/<basename(url)> (spec
// §4.3 step 1).
func (f *Fetcher) CachePath(fd broker.FileDescriptor) string {
	return filepath.Join(f.opts.TargetDir, fd.Collector, filepath.Base(fd.URL))
}

// Fetch downloads (or reuses a cached copy of) one descriptor, blocking
// on the semaphore until a download slot is free. It never blocks for
// an already-cached file.
func (f *Fetcher) Fetch(ctx context.Context, fd broker.FileDescriptor) (ReadyFile, error) {
	path := f.CachePath(fd)

	if f.skipDownload(fd, path) {
		f.Debug().Str("path", path).Msg("fetch: cache hit, skipping download")
		return ReadyFile{Descriptor: fd, Path: path}, nil
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return ReadyFile{}, err
	}
	defer f.sem.Release(1)

	if err := f.download(ctx, fd.URL, path); err != nil {
		return ReadyFile{}, stream.FetchErrorf(false, "fetch: %s: %w", fd.URL, err)
	}
	return ReadyFile{Descriptor: fd, Path: path}, nil
}

// skipDownload implements spec §4.3 step 2: skip iff the file exists
// AND (cache mode active OR its size matches the broker's hint).
func (f *Fetcher) skipDownload(fd broker.FileDescriptor, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if f.opts.CacheMode {
		return true
	}
	return fd.Size > 0 && info.Size() == fd.Size
}

// download streams url into a sibling temp file, then atomically
// renames it into place (spec §4.3 step 3), retrying the whole
// attempt per opts.Retry (transient network errors restart the copy
// from byte zero; archives are small enough that this is acceptable).
func (f *Fetcher) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"

	err := f.opts.Retry.Do(ctx, func(attempt int) error {
		derr := f.downloadOnce(ctx, url, tmp)
		if derr != nil {
			f.Debug().Err(derr).Int("attempt", attempt).Str("url", url).Msg("fetch: download attempt failed")
		}
		return derr
	})
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (f *Fetcher) downloadOnce(ctx context.Context, url, tmp string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	// avoid double decompression of already-gzipped MRT archives (spec §6).
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: status %d for %s", resp.StatusCode, url)
	}

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return out.Sync()
}
