// Package config holds the process-wide tunables for the file manager
// core: cadence and size constants that spec.md leaves as implementation
// details (progress intervals, cache TTLs, debounce windows, chunk
// sizes). Values are loaded from an optional YAML file and fall back to
// documented defaults, mirroring the teacher's
// pkg/configuration/global.Configuration loading pattern.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable used across the core's subsystems.
type Config struct {
	Listing struct {
		// CancellationPollInterval bounds how often a streaming listing
		// checks its cancellation flag (spec §4.1: "≤ 100 ms").
		CancellationPollInterval time.Duration `yaml:"cancellationPollInterval"`
	} `yaml:"listing"`

	WriteOp struct {
		// DefaultProgressInterval is the default cap on write-progress
		// event emission (spec §4.2: "one emit per 200 ms by default").
		DefaultProgressInterval time.Duration `yaml:"defaultProgressInterval"`
		// NetworkCopyChunkBytes is the block size used for chunked
		// network-filesystem copies (spec §4.2: "1 MiB blocks").
		NetworkCopyChunkBytes int64 `yaml:"networkCopyChunkBytes"`
		// MaxConcurrentScans bounds the scanner's fan-out across sources.
		MaxConcurrentScans int `yaml:"maxConcurrentScans"`
		// MaxConflictSamples caps ScanResult.ConflictSample (spec §4.3: "default 50").
		MaxConflictSamples int `yaml:"maxConflictSamples"`
	} `yaml:"writeOp"`

	Viewer struct {
		// FullLoadThresholdBytes is the size at or below which the viewer
		// uses the FullLoad backend (spec §4.5: "≤ 1 MiB").
		FullLoadThresholdBytes int64 `yaml:"fullLoadThresholdBytes"`
		// LineIndexCheckpointStride is K in spec §4.5's LineIndex ("every Kth line").
		LineIndexCheckpointStride int `yaml:"lineIndexCheckpointStride"`
		// ByteSeekBackscanBytes bounds the backward newline scan for
		// ByteOffset seeks on the ByteSeek backend (spec §4.5: "≤ 8 KiB").
		ByteSeekBackscanBytes int64 `yaml:"byteSeekBackscanBytes"`
	} `yaml:"viewer"`

	MTP struct {
		// ListingCacheTTL is the per-directory listing cache lifetime (spec §4.6: "≈ 5s").
		ListingCacheTTL time.Duration `yaml:"listingCacheTTL"`
		// DebounceWindow collapses event storms per device (spec §4.6: "500 ms").
		DebounceWindow time.Duration `yaml:"debounceWindow"`
		// OperationTimeout is the default MTP operation deadline (spec §5: "30 s").
		OperationTimeout time.Duration `yaml:"operationTimeout"`
	} `yaml:"mtp"`

	Watch struct {
		// LocalDebounceWindow coalesces local filesystem watch events.
		LocalDebounceWindow time.Duration `yaml:"localDebounceWindow"`
	} `yaml:"watch"`
}

// Default returns a Config populated with the defaults named throughout
// spec.md.
func Default() *Config {
	c := &Config{}
	c.Listing.CancellationPollInterval = 100 * time.Millisecond
	c.WriteOp.DefaultProgressInterval = 200 * time.Millisecond
	c.WriteOp.NetworkCopyChunkBytes = 1 << 20
	c.WriteOp.MaxConcurrentScans = 8
	c.WriteOp.MaxConflictSamples = 50
	c.Viewer.FullLoadThresholdBytes = 1 << 20
	c.Viewer.LineIndexCheckpointStride = 256
	c.Viewer.ByteSeekBackscanBytes = 8 << 10
	c.MTP.ListingCacheTTL = 5 * time.Second
	c.MTP.DebounceWindow = 500 * time.Millisecond
	c.MTP.OperationTimeout = 30 * time.Second
	c.Watch.LocalDebounceWindow = 200 * time.Millisecond
	return c
}

// Load reads a YAML configuration file at path, overlaying it onto the
// defaults. A missing file is not an error: the defaults are returned
// unmodified, matching the teacher's "pass-through os.IsNotExist" loading
// behavior.
func Load(path string) (*Config, error) {
	result := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, result); err != nil {
		return nil, err
	}
	return result, nil
}
