// Package config loads the server configuration from a YAML file and
// MATCHBOOK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"matchbook/domain/orderbook"
	"matchbook/infra/logging"
	"matchbook/infra/wal/entry"
	"matchbook/infra/wal/exit"
)

const envPrefix = "MATCHBOOK"

type Config struct {
	Log      logging.Config       `mapstructure:"log"`
	GRPC     GRPCConfig           `mapstructure:"grpc"`
	Engine   EngineConfig         `mapstructure:"engine"`
	EntryWAL entry.Config         `mapstructure:"entry_wal"`
	Outbox   exit.Options         `mapstructure:"outbox"`
	Snapshot SnapshotConfig       `mapstructure:"snapshot"`
	Kafka    KafkaConfig          `mapstructure:"kafka"`
	Pools    orderbook.PoolConfig `mapstructure:"pools"`

	Symbols []orderbook.SymbolSpec `mapstructure:"symbols"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// EngineConfig sizes the queues around the engine goroutine.
type EngineConfig struct {
	QueueSize      int    `mapstructure:"queue_size"`
	RetireRingSize uint64 `mapstructure:"retire_ring_size"`
	EventChains    int    `mapstructure:"event_chains"`
	EventChainLen  int    `mapstructure:"event_chain_len"`
}

type SnapshotConfig struct {
	Dir      string        `mapstructure:"dir"`
	Interval time.Duration `mapstructure:"interval"`
	Keep     int           `mapstructure:"keep"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`

	EventsTopic  string        `mapstructure:"events_topic"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	MarketDataTopic    string        `mapstructure:"market_data_topic"`
	MarketDataInterval time.Duration `mapstructure:"market_data_interval"`
	MarketDataDepth    int           `mapstructure:"market_data_depth"`

	// PriceDecimals and SizeDecimals scale the integer prices and
	// volumes of published market data.
	PriceDecimals int32 `mapstructure:"price_decimals"`
	SizeDecimals  int32 `mapstructure:"size_decimals"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("grpc.addr", ":50051")

	v.SetDefault("engine.queue_size", 4096)
	v.SetDefault("engine.retire_ring_size", 1<<14)
	v.SetDefault("engine.event_chains", 1024)
	v.SetDefault("engine.event_chain_len", 64)

	v.SetDefault("entry_wal.dir", "./data/wal_entry")
	v.SetDefault("entry_wal.segment_size", 64<<20)
	v.SetDefault("entry_wal.segment_duration", time.Minute)
	v.SetDefault("entry_wal.sync_every_write", false)

	v.SetDefault("outbox.dir", "./data/wal_exit")
	v.SetDefault("outbox.no_sync", false)

	v.SetDefault("snapshot.dir", "./data/snapshots")
	v.SetDefault("snapshot.interval", 5*time.Minute)
	v.SetDefault("snapshot.keep", 3)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.events_topic", "matchbook.events")
	v.SetDefault("kafka.poll_interval", 250*time.Millisecond)
	v.SetDefault("kafka.market_data_topic", "matchbook.l2")
	v.SetDefault("kafka.market_data_interval", time.Second)
	v.SetDefault("kafka.market_data_depth", 20)
	v.SetDefault("kafka.price_decimals", 2)
	v.SetDefault("kafka.size_decimals", 0)

	pools := orderbook.DefaultPoolConfig()
	v.SetDefault("pools.orders", pools.Orders)
	v.SetDefault("pools.buckets", pools.Buckets)
	v.SetDefault("pools.nodes.node4", pools.Nodes.Node4)
	v.SetDefault("pools.nodes.node16", pools.Nodes.Node16)
	v.SetDefault("pools.nodes.node48", pools.Nodes.Node48)
	v.SetDefault("pools.nodes.node256", pools.Nodes.Node256)
}

// Load reads path (skipped when empty), overlays the environment and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.GRPC.Addr == "" {
		errs = append(errs, errors.New("grpc.addr is empty"))
	}
	if c.EntryWAL.Dir == "" {
		errs = append(errs, errors.New("entry_wal.dir is empty"))
	}
	if c.EntryWAL.SegmentSize <= 0 {
		errs = append(errs, errors.New("entry_wal.segment_size must be positive"))
	}
	if c.Outbox.Dir == "" {
		errs = append(errs, errors.New("outbox.dir is empty"))
	}
	if c.Engine.QueueSize <= 0 {
		errs = append(errs, errors.New("engine.queue_size must be positive"))
	}
	if n := c.Engine.RetireRingSize; n == 0 || n&(n-1) != 0 {
		errs = append(errs, fmt.Errorf("engine.retire_ring_size %d is not a power of two", n))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is empty"))
	}

	seen := make(map[int32]struct{}, len(c.Symbols))
	for _, s := range c.Symbols {
		if _, dup := seen[s.SymbolID]; dup {
			errs = append(errs, fmt.Errorf("symbol %d configured twice", s.SymbolID))
		}
		seen[s.SymbolID] = struct{}{}
		if s.Type != orderbook.ExchangePair && s.Type != orderbook.FuturesContract {
			errs = append(errs, fmt.Errorf("symbol %d: unknown type %d", s.SymbolID, s.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
