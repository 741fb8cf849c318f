// Package env builds the link and its transport from configuration.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	fx "github.com/robotalks/odrive.go/pkg/framework"
	"github.com/robotalks/odrive.go/pkg/l0/link"
	"github.com/robotalks/odrive.go/pkg/l0/stream"
)

// Config provides the options to setup a link.
type Config struct {
	// Transport is the URL of the byte stream, e.g.
	// serial:///dev/ttyACM0?baud=115200, tcp://host:port or ws://host/path.
	Transport string `toml:"transport"`
	// Timeout is how long a command waits for its reply.
	Timeout time.Duration `toml:"timeout"`
	// QueueCapacity is the maximum number of commands awaiting replies.
	QueueCapacity int `toml:"queue_capacity"`
	// LineCapacity is the longest reply line accepted.
	LineCapacity int `toml:"line_capacity"`
	// TrimCR strips a trailing carriage return from replies.
	TrimCR bool `toml:"trim_cr"`
	// StrictChecksum rejects checksums without digits or above 255.
	StrictChecksum bool `toml:"strict_checksum"`
	// MaxBuffered limits received bytes not yet polled.
	MaxBuffered int `toml:"max_buffered"`
	// PollInterval is the tick of the loop polling the link.
	PollInterval time.Duration `toml:"poll_interval"`

	// DeviceID identifies the device on the MQTT broker.
	DeviceID string `toml:"device_id"`
	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `toml:"mqtt"`
	// StatsInterval is the period of publishing link stats.
	StatsInterval time.Duration `toml:"stats_interval"`
}

var defaultConfig = Config{
	Transport:     "serial:///dev/ttyACM0",
	Timeout:       link.DefaultTimeout,
	QueueCapacity: link.DefaultQueueCapacity,
	LineCapacity:  link.DefaultLineCapacity,
	MaxBuffered:   stream.DefaultMaxBuffered,
	PollInterval:  10 * time.Millisecond,
	MQTTBrokerURL: "mqtt://localhost:1883/odrive/",
	StatsInterval: 5 * time.Second,
}

var configFile string

func init() {
	if val := os.Getenv("ODRIVE_TRANSPORT"); val != "" {
		defaultConfig.Transport = val
	}
	if val := os.Getenv("ODRIVE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			defaultConfig.Timeout = d
		}
	}
	if val := os.Getenv("ODRIVE_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("ODRIVE_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
	configFile = os.Getenv("ODRIVE_CONFIG")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	bindFlags(flag.CommandLine, &defaultConfig)
	flag.StringVar(&configFile, "config", configFile, "TOML config file, flags take precedence.")
}

func bindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Transport, "transport", c.Transport, "Transport URL: serial:///dev/tty..., tcp://host:port, ws://host/path.")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Reply timeout.")
	fs.IntVar(&c.QueueCapacity, "queue-cap", c.QueueCapacity, "Max commands awaiting replies.")
	fs.IntVar(&c.LineCapacity, "line-cap", c.LineCapacity, "Max length of a reply line.")
	fs.BoolVar(&c.TrimCR, "trim-cr", c.TrimCR, "Strip trailing CR from replies.")
	fs.BoolVar(&c.StrictChecksum, "strict-checksum", c.StrictChecksum, "Reject checksums without digits or above 255.")
	fs.IntVar(&c.MaxBuffered, "max-buffered", c.MaxBuffered, "Max received bytes not yet polled.")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Link polling interval.")
	fs.StringVar(&c.DeviceID, "id", c.DeviceID, "Device ID, machine ID if empty.")
	fs.StringVar(&c.MQTTBrokerURL, "mqtt", c.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	fs.DurationVar(&c.StatsInterval, "stats-interval", c.StatsInterval, "Interval of publishing stats.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load creates a Config from defaults, the config file if specified
// and explicitly set flags, in increasing precedence.
func Load() (*Config, error) {
	conf := NewConfig()
	if configFile == "" {
		return conf, nil
	}
	if err := conf.LoadFile(configFile); err != nil {
		return nil, err
	}
	if err := conf.overrideFlags(flag.CommandLine); err != nil {
		return nil, err
	}
	return conf, nil
}

// MustLoad loads a Config and fails on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile overlays the values from a TOML file.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// overrideFlags applies the flags explicitly set in set.
func (c *Config) overrideFlags(set *flag.FlagSet) (err error) {
	bound := flag.NewFlagSet("config", flag.ContinueOnError)
	bindFlags(bound, c)
	set.Visit(func(f *flag.Flag) {
		if bound.Lookup(f.Name) == nil || err != nil {
			return
		}
		err = bound.Set(f.Name, f.Value.String())
	})
	return
}

// LinkOptions returns the options to create a link.Link.
func (c *Config) LinkOptions() []link.Option {
	return []link.Option{
		link.WithQueueCapacity(c.QueueCapacity),
		link.WithLineCapacity(c.LineCapacity),
		link.WithTimeout(c.Timeout),
		link.WithTrimCR(c.TrimCR),
		link.WithStrictChecksum(c.StrictChecksum),
	}
}

// NewLoop creates a Loop ticking at PollInterval.
func (c *Config) NewLoop() *fx.Loop {
	loop := fx.NewLoop()
	if c.PollInterval > 0 {
		loop.Interval = c.PollInterval
	}
	return loop
}

// ID returns DeviceID, or the machine ID when it's empty.
func (c *Config) ID() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	return MachineID()
}
