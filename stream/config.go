package stream

import (
	"time"

	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/parser"
)

// DataType is one of the two historic data types a collector can be
// queried for (spec §3).
type DataType string

const (
	DataTypeRIBs    DataType = "ribs"
	DataTypeUpdates DataType = "updates"
)

// HistoricConfig configures the historic (archive-replay) pipeline
// (spec §3). Immutable after Validate succeeds (spec §3 Lifecycle).
type HistoricConfig struct {
	StartTime time.Time
	EndTime   time.Time

	Collectors []string
	DataTypes  []DataType // default {updates}

	Filter *filterspec.FilterSpec // nil means match-all

	MaxConcurrentDownloads int // default 10
	CacheDir               string // "" means use a temp directory
	RAMFetch               bool
	ChunkTime              time.Duration // default 2h
	Parser                 parser.Backend
}

// LiveConfig configures the live (RIS Live WebSocket) pipeline (spec §3).
type LiveConfig struct {
	Collectors        []string
	Filter            *filterspec.FilterSpec
	JitterBufferDelay time.Duration // 0 means the 10s default; negative disables buffering
}

// DefaultHistoricConfig holds the spec §3 defaults, applied by Validate
// for any zero-valued field.
var DefaultHistoricConfig = HistoricConfig{
	DataTypes:              []DataType{DataTypeUpdates},
	MaxConcurrentDownloads: 10,
	ChunkTime:              2 * time.Hour,
	Parser:                 parser.BackendPybgpkit,
}

// DefaultLiveConfig holds the spec §3 default jitter buffer delay.
var DefaultLiveConfig = LiveConfig{
	JitterBufferDelay: 10 * time.Second,
}

// Validate normalizes defaults and enforces the spec §3 invariants:
// start < end, non-empty collectors, UTC normalization.
func (c *HistoricConfig) Validate() error {
	if len(c.DataTypes) == 0 {
		c.DataTypes = DefaultHistoricConfig.DataTypes
	}
	if c.MaxConcurrentDownloads == 0 {
		c.MaxConcurrentDownloads = DefaultHistoricConfig.MaxConcurrentDownloads
	}
	if c.ChunkTime == 0 {
		c.ChunkTime = DefaultHistoricConfig.ChunkTime
	}
	if c.Parser == 0 {
		c.Parser = DefaultHistoricConfig.Parser
	}

	if c.StartTime.IsZero() || c.EndTime.IsZero() {
		return ConfigErrorf("historic config requires both start_time and end_time")
	}
	c.StartTime = c.StartTime.UTC()
	c.EndTime = c.EndTime.UTC()
	if !c.StartTime.Before(c.EndTime) {
		return ConfigErrorf("start_time (%s) must be before end_time (%s)", c.StartTime, c.EndTime)
	}
	if len(c.Collectors) == 0 {
		return ConfigErrorf("historic config requires at least one collector")
	}
	for _, dt := range c.DataTypes {
		if dt != DataTypeRIBs && dt != DataTypeUpdates {
			return ConfigErrorf("unknown data_type %q", dt)
		}
	}
	if c.MaxConcurrentDownloads <= 0 {
		return ConfigErrorf("max_concurrent_downloads must be > 0")
	}
	if c.ChunkTime <= 0 {
		return ConfigErrorf("chunk_time must be > 0")
	}
	if c.Filter != nil {
		if err := c.Filter.Validate(); err != nil {
			return ConfigErrorf("%v", err)
		}
	}
	return nil
}

// Validate normalizes defaults and enforces the spec §3 live invariants:
// a zero JitterBufferDelay becomes the default, collectors must be
// non-empty and the filter must validate. LiveConfig has no data types
// field; the live pipeline only carries updates.
func (c *LiveConfig) Validate() error {
	if c.JitterBufferDelay == 0 {
		c.JitterBufferDelay = DefaultLiveConfig.JitterBufferDelay
	}
	if len(c.Collectors) == 0 {
		return ConfigErrorf("live config requires at least one collector")
	}
	if c.Filter != nil {
		if err := c.Filter.Validate(); err != nil {
			return ConfigErrorf("%v", err)
		}
	}
	return nil
}

// Mode is which pipeline a Config resolves to (spec §4.9).
type Mode int

const (
	ModeHistoric Mode = iota + 1
	ModeLive
)

// Config is the single entry point a caller builds: presence of both
// StartTime and EndTime selects the historic pipeline, absence of both
// selects live, and exactly one being set is a configuration error
// (spec §3 Invariants, §4.9). Resolve produces the derived immutable
// HistoricConfig/LiveConfig per the "mutable config post-construction
// becomes a derived immutable config" design note (spec §9).
type Config struct {
	StartTime *time.Time
	EndTime   *time.Time

	Collectors []string
	DataTypes  []DataType
	Filter     *filterspec.FilterSpec

	MaxConcurrentDownloads int
	CacheDir               string
	RAMFetch               bool
	ChunkTime              time.Duration
	Parser                 parser.Backend

	JitterBufferDelay time.Duration
}

// Resolve determines the Mode from field presence and returns the
// corresponding validated, immutable derived config.
func (c *Config) Resolve() (Mode, *HistoricConfig, *LiveConfig, error) {
	switch {
	case c.StartTime != nil && c.EndTime != nil:
		hc := &HistoricConfig{
			StartTime:              *c.StartTime,
			EndTime:                *c.EndTime,
			Collectors:             c.Collectors,
			DataTypes:              c.DataTypes,
			Filter:                 c.Filter,
			MaxConcurrentDownloads: c.MaxConcurrentDownloads,
			CacheDir:               c.CacheDir,
			RAMFetch:               c.RAMFetch,
			ChunkTime:              c.ChunkTime,
			Parser:                 c.Parser,
		}
		if err := hc.Validate(); err != nil {
			return 0, nil, nil, err
		}
		return ModeHistoric, hc, nil, nil

	case c.StartTime == nil && c.EndTime == nil:
		lc := &LiveConfig{
			Collectors:        c.Collectors,
			Filter:            c.Filter,
			JitterBufferDelay: c.JitterBufferDelay,
		}
		if err := lc.Validate(); err != nil {
			return 0, nil, nil, err
		}
		return ModeLive, nil, lc, nil

	default:
		return 0, nil, nil, ConfigErrorf("exactly one of start_time/end_time was set; both or neither are required")
	}
}
