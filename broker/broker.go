// Package broker implements the BrokerClient (spec §4.2): given a
// (collector set, data_type, window), it queries a fixed HTTP broker
// endpoint and returns the ordered archive descriptors the Fetcher
// will download.
package broker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bgpstream-engine/bgpstream/retry"
	"github.com/bgpstream-engine/bgpstream/stream"
)

// DefaultBaseURL is the fixed broker endpoint (spec §4.2: "the broker's
// URL is a fixed configuration constant overridable by environment").
// BGPSTREAM_BROKER_URL overrides it.
const DefaultBaseURL = "https://broker.bgpstream.caida.org/v2/data"

const envOverride = "BGPSTREAM_BROKER_URL"

// FileDescriptor is one archive the broker points at (spec §4.2).
type FileDescriptor struct {
	URL         string
	Collector   string
	DataType    string // "ribs" or "updates"
	NominalTime time.Time
	Size        int64 // rough_size; 0 if the broker didn't supply one
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     *zerolog.Logger
}

// DefaultOptions resolves BaseURL from envOverride, falling back to
// DefaultBaseURL, and uses retry.Default.
func DefaultOptions() Options {
	base := DefaultBaseURL
	if v := os.Getenv(envOverride); v != "" {
		base = v
	}
	return Options{
		BaseURL:    base,
		HTTPClient: http.DefaultClient,
		Retry:      retry.Default,
		Logger:     &log.Logger,
	}
}

// Client queries the broker HTTP API (spec §4.2, §6 "Broker HTTP").
type Client struct {
	*zerolog.Logger
	opts Options
}

// New returns a Client. A zero Options is replaced field-by-field with
// DefaultOptions values.
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = def.HTTPClient
	}
	if opts.Retry == (retry.Policy{}) {
		opts.Retry = def.Retry
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	return &Client{Logger: opts.Logger, opts: opts}
}

// Query asks the broker for every file covering collectors/dataType
// within [start, end), retrying transient failures per opts.Retry. A
// failure surviving every retry is returned as a fatal
// *stream.Error{Kind: KindBroker} (spec §4.2, §7).
func (c *Client) Query(ctx context.Context, collectors []string, dataType string, start, end time.Time) ([]FileDescriptor, error) {
	u, err := buildURL(c.opts.BaseURL, collectors, dataType, start, end)
	if err != nil {
		return nil, stream.BrokerErrorf("broker: build request: %v", err)
	}

	var files []FileDescriptor
	err = c.opts.Retry.Do(ctx, func(attempt int) error {
		body, ferr := c.fetch(ctx, u)
		if ferr != nil {
			c.Debug().Err(ferr).Int("attempt", attempt).Str("url", u).Msg("broker: request failed")
			return ferr
		}
		parsed, perr := parseFiles(body)
		if perr != nil {
			c.Debug().Err(perr).Int("attempt", attempt).Msg("broker: response parse failed")
			return perr
		}
		files = parsed
		return nil
	})
	if err != nil {
		return nil, stream.BrokerErrorf("broker: %s: %w", u, err)
	}
	return files, nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("broker: status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func buildURL(base string, collectors []string, dataType string, start, end time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("collectors", strings.Join(collectors, ","))
	q.Set("data_type", dataType)
	q.Set("ts_start", strconv.FormatInt(start.Unix(), 10))
	q.Set("ts_end", strconv.FormatInt(end.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseFiles extracts data.files (spec §6: "response is a JSON object
// whose data.files is an array of {url, collector, data_type,
// ts_start, rough_size}").
func parseFiles(body []byte) ([]FileDescriptor, error) {
	data, _, _, err := jsonparser.Get(body, "data", "files")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	var out []FileDescriptor
	var walkErr error
	_, err = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, aerr error) {
		if walkErr != nil {
			return
		}
		if aerr != nil {
			walkErr = aerr
			return
		}

		fd := FileDescriptor{}
		fd.URL, _ = jsonparser.GetString(value, "url")
		fd.Collector, _ = jsonparser.GetString(value, "collector")
		fd.DataType, _ = jsonparser.GetString(value, "data_type")

		if ts, terr := jsonparser.GetInt(value, "ts_start"); terr == nil {
			fd.NominalTime = time.Unix(ts, 0).UTC()
		}
		if sz, serr := jsonparser.GetInt(value, "rough_size"); serr == nil {
			fd.Size = sz
		}
		if fd.URL == "" {
			walkErr = fmt.Errorf("%w: file entry missing url", ErrBadResponse)
			return
		}
		out = append(out, fd)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
