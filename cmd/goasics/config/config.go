// Package config reads and writes goasics.config files.
//
// The file is a flat list of key/value settings:
//
//	<configuration>
//	  <settings>
//	    <add key="tsaUrl" value="https://tsa.example.com/tsr" />
//	  </settings>
//	</configuration>
package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the name searched for in each config location.
const FileName = "goasics.config"

// Setting keys.
const (
	KeyTSAURL          = "tsaUrl"
	KeyTSAUsername     = "tsaUsername"
	KeyTSAPassword     = "tsaPassword"
	KeyTSAToken        = "tsaToken"
	KeyTSAAPIKey       = "tsaApiKey"
	KeyDigestAlgorithm = "digestAlgorithm"
	KeyTimeout         = "timeout"
	KeyTracing         = "tracing"
	KeyOTLPEndpoint    = "otlpEndpoint"
	KeyHTTP3           = "http3"
)

var validKeys = map[string]bool{
	KeyTSAURL:          true,
	KeyTSAUsername:     true,
	KeyTSAPassword:     true,
	KeyTSAToken:        true,
	KeyTSAAPIKey:       true,
	KeyDigestAlgorithm: true,
	KeyTimeout:         true,
	KeyTracing:         true,
	KeyOTLPEndpoint:    true,
	KeyHTTP3:           true,
}

// IsValidKey reports whether key is a known setting.
func IsValidKey(key string) bool {
	return validKeys[key]
}

// ValidKeys returns the known setting keys in sorted order.
func ValidKeys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Config represents a goasics.config file
type Config struct {
	XMLName  xml.Name `xml:"configuration"`
	Settings *Section `xml:"settings"`
}

// Section holds the settings
type Section struct {
	Add []Item `xml:"add"`
}

// Item is one key/value pair
type Item struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

// New returns an empty configuration.
func New() *Config {
	return &Config{Settings: &Section{}}
}

// Load reads a config file
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse decodes config XML from a reader
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	if err := xml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config XML: %w", err)
	}
	if cfg.Settings == nil {
		cfg.Settings = &Section{}
	}
	return &cfg, nil
}

// Save writes cfg to path, creating the directory when needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := Write(f, cfg); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write encodes cfg as XML
func Write(w io.Writer, cfg *Config) error {
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config XML: %w", err)
	}
	if err := encoder.Flush(); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}

// Get returns the value for key, or "" when unset.
func (c *Config) Get(key string) string {
	if c.Settings == nil {
		return ""
	}
	for _, item := range c.Settings.Add {
		if item.Key == key {
			return item.Value
		}
	}
	return ""
}

// Set adds or replaces a value.
func (c *Config) Set(key, value string) {
	if c.Settings == nil {
		c.Settings = &Section{}
	}
	for i := range c.Settings.Add {
		if c.Settings.Add[i].Key == key {
			c.Settings.Add[i].Value = value
			return
		}
	}
	c.Settings.Add = append(c.Settings.Add, Item{Key: key, Value: value})
}

// Delete removes key and reports whether it was present.
func (c *Config) Delete(key string) bool {
	if c.Settings == nil {
		return false
	}
	for i := range c.Settings.Add {
		if c.Settings.Add[i].Key == key {
			c.Settings.Add = append(c.Settings.Add[:i], c.Settings.Add[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns the settings in file order.
func (c *Config) Items() []Item {
	if c.Settings == nil {
		return nil
	}
	return append([]Item(nil), c.Settings.Add...)
}
