package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	NTP       NTPConfig       `yaml:"ntp"`
	Export    ExportConfig    `yaml:"export"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Webserver WebserverConfig `yaml:"webserver"`
	Log       LogConfig       `yaml:"log"`
}

// FlagConfig defines the configured command line flags (parameters).
type FlagConfig struct {
	LogLevel   string `json:"LogLevel,omitempty" yaml:"LogLevel,omitempty"`
	ConfigFile string `json:"Config,omitempty" yaml:"Config,omitempty"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration.
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration.
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// LogConfig defines the struct of the debug configuration and configuration file.
type LogConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// ReceiverConfig defines the struct of the GPIO receiver wiring: one
// BCM pin number for a single-pin (both-edges) receiver, or two for a
// two-pin (start-marker/end-marker) receiver, per spec.md §2.1.
type ReceiverConfig struct {
	Gpio              []int         `yaml:"gpio"`
	Terminator        string        `yaml:"terminator"`
	DebouncePeriodInt int           `yaml:"debounceperiod"`
	Debounce          time.Duration `yaml:"-"`
	ToleranceMSInt    int           `yaml:"tolerance"`
	Tolerance         time.Duration `yaml:"-"`
}

// NTPConfig defines the struct of the NTP SHM refclock unit.
type NTPConfig struct {
	Unit int `yaml:"unit"`
}

// ExportConfig defines the struct of the three-minute block exporter.
// An empty Fifo disables the exporter entirely.
type ExportConfig struct {
	Fifo string `yaml:"fifo"`
}

// NewConfig create the structure of the application configuration.
func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Receiver: ReceiverConfig{
			Gpio:              []int{17},
			Terminator:        "pullup",
			DebouncePeriodInt: 10,
			ToleranceMSInt:    25,
		},
		NTP: NTPConfig{Unit: 2},
		Log: LogConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"status":  true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Topic:      "/dcf77clock/time",
		},
	}
}

// LoadConfig reads the config file and set the application configuration.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Log.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Log, err)
	}

	c.Receiver.Debounce = time.Duration(c.Receiver.DebouncePeriodInt) * time.Millisecond
	c.Receiver.Tolerance = time.Duration(c.Receiver.ToleranceMSInt) * time.Millisecond

	if n := len(c.Receiver.Gpio); n == 0 || n > 2 {
		return fmt.Errorf("unsupported receiver wiring: %d gpio lines configured, want 1 or 2", n)
	}

	return nil
}

// readConfigFile read the configuration File and store the content to the config structure.
// A blank ConfigFile (-c "") keeps the defaults from NewConfig; without a -c
// flag the CLI's default config file path is read.
func (c *Config) readConfigFile() error {
	if c.Flag.ConfigFile == "" {
		return nil
	}

	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

// setDebugConfig translate the log parameter to values of the debug module and open the log file.
func (c *Config) setDebugConfig() (err error) {
	switch s := strings.ToLower(c.Log.FlagString); s {
	case "trace", "full":
		c.Log.Flag = debug.Full
	case "debug":
		c.Log.Flag = debug.Fatal | debug.Info | debug.Error | debug.Warning | debug.Debug
	case "warning", "standard":
		c.Log.Flag = debug.Fatal | debug.Info | debug.Error | debug.Warning
	case "error":
		c.Log.Flag = debug.Fatal | debug.Info | debug.Error
	case "info":
		c.Log.Flag = debug.Fatal | debug.Info
	case "fatal":
		c.Log.Flag = debug.Fatal
	}

	switch c.Log.FileString {
	case "stderr":
		c.Log.File = os.Stderr
	case "stdout":
		c.Log.File = os.Stdout
	default:
		if c.Log.File, err = os.OpenFile(c.Log.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
