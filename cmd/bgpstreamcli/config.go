package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/bgpstream-engine/bgpstream/filterspec"
	"github.com/bgpstream-engine/bgpstream/parser"
	"github.com/bgpstream-engine/bgpstream/stream"
)

// runConfig is the CLI's own run-configuration shape, loaded with
// koanf the way pobradovic08-route-beacon-ri/internal/config/config.go
// loads its Kafka/Postgres settings: a YAML file overlaid by
// environment variables, defaults filled in before Unmarshal.
type runConfig struct {
	Collectors []string `koanf:"collectors"`
	DataTypes  []string `koanf:"data_types"`

	StartTime string `koanf:"start_time"` // RFC3339; both set => historic
	EndTime   string `koanf:"end_time"`

	MaxConcurrentDownloads int    `koanf:"max_concurrent_downloads"`
	CacheDir               string `koanf:"cache_dir"`
	RAMFetch               bool   `koanf:"ram_fetch"`
	ChunkTimeSeconds        int   `koanf:"chunk_time_seconds"`
	Parser                 string `koanf:"parser"`

	JitterBufferDelaySeconds int `koanf:"jitter_buffer_delay_seconds"`

	BrokerBaseURL string `koanf:"broker_base_url"`
	LiveURL       string `koanf:"live_url"`

	Filter struct {
		PeerASN    *uint32 `koanf:"peer_asn"`
		OriginASN  *uint32 `koanf:"origin_asn"`
		PeerIP     string  `koanf:"peer_ip"`
		AsPath     string  `koanf:"as_path"`
		IPVersion  int     `koanf:"ip_version"`
		UpdateType string  `koanf:"update_type"` // "announce" | "withdraw" | ""
		Prefix     string  `koanf:"prefix"`
		PrefixMode string  `koanf:"prefix_mode"` // "exact" | "super" | "sub" | "super_sub"
	} `koanf:"filter"`
}

var defaultRunConfig = runConfig{
	DataTypes:               []string{"updates"},
	MaxConcurrentDownloads:  10,
	ChunkTimeSeconds:        7200,
	Parser:                  "pybgpkit",
	JitterBufferDelaySeconds: 10,
}

// loadConfig overlays path (if non-empty) and BGPSTREAM_-prefixed
// environment variables onto defaultRunConfig, matching the
// env.Provider transform in the retrieved route-beacon-ri config
// loader (RIB_INGESTER_KAFKA__BROKERS -> kafka.brokers).
func loadConfig(path string) (*runConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("BGPSTREAM_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BGPSTREAM_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := defaultRunConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Collectors) == 1 && strings.Contains(cfg.Collectors[0], ",") {
		cfg.Collectors = strings.Split(cfg.Collectors[0], ",")
	}
	if len(cfg.DataTypes) == 1 && strings.Contains(cfg.DataTypes[0], ",") {
		cfg.DataTypes = strings.Split(cfg.DataTypes[0], ",")
	}

	return &cfg, nil
}

func (c *runConfig) parseBackend() (parser.Backend, error) {
	if c.Parser == "" {
		return parser.ParseBackend(defaultRunConfig.Parser)
	}
	return parser.ParseBackend(c.Parser)
}

func (c *runConfig) parseTimes() (start, end *time.Time, err error) {
	if c.StartTime == "" && c.EndTime == "" {
		return nil, nil, nil
	}
	if c.StartTime == "" || c.EndTime == "" {
		return nil, nil, fmt.Errorf("config: start_time and end_time must both be set, or both omitted")
	}
	s, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return nil, nil, fmt.Errorf("config: bad start_time: %w", err)
	}
	e, err := time.Parse(time.RFC3339, c.EndTime)
	if err != nil {
		return nil, nil, fmt.Errorf("config: bad end_time: %w", err)
	}
	return &s, &e, nil
}

// buildFilter collapses the flat filter.prefix_mode/filter.prefix pair
// from the config file into filterspec.Raw's four-variant shape and
// returns nil if no filter field was set (spec §3 "zero field means
// match all").
func (c *runConfig) buildFilter() (*filterspec.FilterSpec, error) {
	ff := c.Filter
	raw := filterspec.Raw{
		OriginASN: ff.OriginASN,
		PeerASN:   ff.PeerASN,
		PeerIP:    ff.PeerIP,
		AsPath:    ff.AsPath,
		IPVersion: ff.IPVersion,
	}
	switch ff.UpdateType {
	case "announce":
		raw.UpdateType = filterspec.UpdateAnnounce
	case "withdraw":
		raw.UpdateType = filterspec.UpdateWithdraw
	}
	switch ff.PrefixMode {
	case "exact", "":
		raw.Prefix = ff.Prefix
	case "super":
		raw.PrefixSuper = ff.Prefix
	case "sub":
		raw.PrefixSub = ff.Prefix
	case "super_sub":
		raw.PrefixSuperSub = ff.Prefix
	default:
		return nil, fmt.Errorf("config: unknown filter.prefix_mode %q", ff.PrefixMode)
	}

	f, err := filterspec.New(raw)
	if err != nil {
		return nil, err
	}
	if f.IsZero() {
		return nil, nil
	}
	return f, nil
}

// toStreamConfig assembles a stream.Config from the loaded runConfig,
// leaving mode selection (historic vs. live) to stream.Config.Resolve
// via parseTimes's both-or-neither start/end time rule.
func toStreamConfig(c *runConfig) (*stream.Config, error) {
	start, end, err := c.parseTimes()
	if err != nil {
		return nil, err
	}
	filter, err := c.buildFilter()
	if err != nil {
		return nil, err
	}
	backend, err := c.parseBackend()
	if err != nil {
		return nil, err
	}

	dataTypes := make([]stream.DataType, 0, len(c.DataTypes))
	for _, dt := range c.DataTypes {
		dataTypes = append(dataTypes, stream.DataType(dt))
	}

	return &stream.Config{
		StartTime:              start,
		EndTime:                end,
		Collectors:             c.Collectors,
		DataTypes:              dataTypes,
		Filter:                 filter,
		MaxConcurrentDownloads: c.MaxConcurrentDownloads,
		CacheDir:               c.CacheDir,
		RAMFetch:               c.RAMFetch,
		ChunkTime:              time.Duration(c.ChunkTimeSeconds) * time.Second,
		Parser:                 backend,
		JitterBufferDelay:      time.Duration(c.JitterBufferDelaySeconds) * time.Second,
	}, nil
}
