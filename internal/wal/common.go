package wal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/uber-go/tally/v4"
)

var (
	fsyncLatencyBuckets = tally.DurationBuckets{
		1 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		20 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		500 * time.Millisecond,
		1 * time.Second,
	}

	readLatencyBuckets = tally.DurationBuckets{
		50 * time.Microsecond,
		100 * time.Microsecond,
		250 * time.Microsecond,
		500 * time.Microsecond,
		1 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
	}

	writeLatencyBuckets = tally.DurationBuckets{
		100 * time.Microsecond,
		500 * time.Microsecond,
		1 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
	}
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
)

const (
	defaultBufferSize = 4 * MB
	pidLockName       = "wal.lock"
)

// Config stores the tunable parameters for a namespace's WAL.
type Config struct {
	// BufferSize sizes each of the buffer manager's two in-memory slabs.
	// Clamped into [walbuf.WALBufferMinSize, walbuf.WALBufferMaxSize].
	BufferSize uint32 `toml:"buffer_size"`
	// FSync forces an fsync on every Append when true. Append already
	// fsyncs unconditionally per record (spec durability contract);
	// this flag exists for parity with the ambient config surface and
	// future relaxed-durability modes.
	FSync bool `toml:"fsync"`
}

// NewDefaultConfig returns a Config with sane defaults for local
// development.
func NewDefaultConfig() *Config {
	return &Config{
		BufferSize: defaultBufferSize,
		FSync:      true,
	}
}

func (c *Config) applyDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
}

// LoadConfig loads a Config from a TOML file at path, falling back to
// NewDefaultConfig if the file does not exist.
func LoadConfig(path string) (*Config, error) {
	config := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read wal config %s: %w", path, err)
		}
		slog.Warn("[wal.config] file not found, using defaults", "path", path)
		return config, nil
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse wal config %s: %w", path, err)
	}
	config.applyDefaults()
	return config, nil
}
