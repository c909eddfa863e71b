package server

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/surfaces/dvid"
)

const (
	// DefaultWebAddress is the default address of the HTTP server
	DefaultWebAddress = "localhost:8000"

	// DefaultMaxBodySize is the default limit in MB on POSTed surface documents.
	DefaultMaxBodySize = 512
)

var (
	// the parsed TOML configuration data
	tc tomlConfig

	// the TOML config file location
	tcLocation string
)

func init() {
	tc.Server.HTTPAddress = DefaultWebAddress
	tc.Server.MaxBodySize = DefaultMaxBodySize
}

type tomlConfig struct {
	Server  serverConfig
	Logging dvid.LogConfig
	Auth    authConfig
	Store   storeConfig
	Cache   sizeConfig
}

type serverConfig struct {
	HTTPAddress string   `toml:"httpAddress"`
	CorsDomains []string `toml:"corsDomains"`

	// Workers bounds the goroutines used to decode a posted surface set.
	Workers int `toml:"workers"`

	// MaxBodySize is the largest accepted request body in MB.
	MaxBodySize int `toml:"maxBodySize"`
}

type storeConfig struct {
	// Path of the badger directory.  If empty, surface sets are kept in memory only.
	Path string `toml:"path"`

	// Compression of stored values: none, snappy, lz4, gzip, or zstd.
	Compression string `toml:"compression"`
}

type sizeConfig struct {
	// Size in MB.  0 disables the cache.
	Size int `toml:"size"`
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *tomlConfig) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = dvid.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting logfile setting to absolute path")
		}
	}

	// [auth].auth_file
	if c.Auth.AuthFile != "" {
		c.Auth.AuthFile, err = dvid.ConvertToAbsolute(c.Auth.AuthFile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting auth_file setting to absolute path")
		}
	}

	// [store].path
	if c.Store.Path != "" {
		c.Store.Path, err = dvid.ConvertToAbsolute(c.Store.Path, configDir)
		if err != nil {
			return fmt.Errorf("Error converting store path %q to absolute path", c.Store.Path)
		}
	}
	return nil
}

// LoadConfig loads server configuration from a TOML file.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("no server TOML configuration file provided")
	}
	var c tomlConfig
	c.Server.HTTPAddress = DefaultWebAddress
	c.Server.MaxBodySize = DefaultMaxBodySize
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if c.Store.Compression != "" {
		if _, err := dvid.ParseCompression(c.Store.Compression); err != nil {
			return fmt.Errorf("bad [store] compression: %v", err)
		}
	}
	tc = c
	tcLocation = filename
	dvid.Infof("tomlConfig: %+v\n", tc)
	return nil
}

// ConfigLocation returns the path of the loaded TOML file.
func ConfigLocation() string {
	return tcLocation
}

func HTTPAddress() string {
	return tc.Server.HTTPAddress
}

// Workers returns the number of goroutines to use when decoding a surface set.
func Workers() int {
	if tc.Server.Workers > 0 {
		return tc.Server.Workers
	}
	return runtime.NumCPU()
}

// MaxBodySize returns the maximum accepted request body in bytes.
func MaxBodySize() int64 {
	if tc.Server.MaxBodySize <= 0 {
		return DefaultMaxBodySize * dvid.Mega
	}
	return int64(tc.Server.MaxBodySize) * dvid.Mega
}

// CacheSize returns the number of MB reserved for the surface set cache.
func CacheSize() int {
	return tc.Cache.Size
}

// LogConfig returns the [logging] section of the configuration.
func LogConfig() dvid.LogConfig {
	return tc.Logging
}
