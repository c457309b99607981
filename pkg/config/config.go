// Package config loads simfs settings from a YAML file and the environment.
// Environment variables win over the file; both are optional.
package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/weberc2/simfs/pkg/snapshot"
	. "github.com/weberc2/simfs/pkg/types"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "SIMFS"
	appName      = "simfs"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	Image     string `split_words:"true" yaml:"image"`
	LogLevel  string `split_words:"true" yaml:"logLevel"`
	LogFormat string `split_words:"true" yaml:"logFormat"`

	// Geometry used when formatting. Mounting reads it from the image.
	DiskSize  Byte `split_words:"true" yaml:"diskSize"`
	BlockSize Byte `split_words:"true" yaml:"blockSize"`
	Inodes    Ino  `split_words:"true" yaml:"inodes"`

	SnapshotBucket   string `split_words:"true" yaml:"snapshotBucket"`
	SnapshotPrefix   string `split_words:"true" yaml:"snapshotPrefix"`
	SnapshotRegion   string `split_words:"true" yaml:"snapshotRegion"`
	SnapshotEndpoint string `split_words:"true" yaml:"snapshotEndpoint"`
}

func Default() Config {
	return Config{
		Image:          "simfs.img",
		LogLevel:       "info",
		LogFormat:      LogFormatText,
		DiskSize:       DefaultDiskSize,
		BlockSize:      DefaultBlockSize,
		Inodes:         DefaultInodes,
		SnapshotPrefix: "simfs/",
	}
}

// DefaultPath is where `Load` looks when it isn't given a file: the value
// of `SIMFS_CONFIG_FILE`, falling back to `~/.config/simfs.yaml`.
func DefaultPath() string {
	if path := os.Getenv(envVarPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName+".yaml")
}

// Load reads the config file at `path` over the defaults, then applies the
// environment. An empty `path` means `DefaultPath`, which may be missing;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	c := Default()
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file `%s`: %w", path, err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if y, e := func() (string, string) {
		if c.Image == "" {
			return "image", "IMAGE"
		}
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return "logLevel", "LOG_LEVEL"
		}
		if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
			return "logFormat", "LOG_FORMAT"
		}
		g := c.Geometry()
		if err := g.Validate(); err != nil {
			return "diskSize/blockSize/inodes", "DISK_SIZE/BLOCK_SIZE/INODES"
		}
		return "", ""
	}(); y != "" {
		return fmt.Errorf(
			"invalid configuration: %s / %s_%s: %w",
			y,
			envVarPrefix,
			e,
			InvalidArgumentErr,
		)
	}
	return nil
}

func (c *Config) Geometry() Geometry {
	return Geometry{
		DiskSize:  c.DiskSize,
		BlockSize: c.BlockSize,
		Inodes:    c.Inodes,
	}
}

// Logger builds the process logger. Call `Validate` first; an unparseable
// level falls back to info.
func (c *Config) Logger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.Out = out
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// Snapshots returns the snapshot store described by the config. Snapshots
// are gzipped on their way into S3.
func (c *Config) Snapshots(logger logrus.FieldLogger) (*snapshot.Snapshots, error) {
	if c.SnapshotBucket == "" {
		return nil, fmt.Errorf(
			"missing required configuration: snapshotBucket / %s_SNAPSHOT_BUCKET: %w",
			envVarPrefix,
			InvalidArgumentErr,
		)
	}
	store, err := snapshot.NewS3ObjectStore(c.SnapshotRegion, c.SnapshotEndpoint)
	if err != nil {
		return nil, err
	}
	return &snapshot.Snapshots{
		Store:  &snapshot.GzipObjectStore{ObjectStore: store},
		Bucket: c.SnapshotBucket,
		Prefix: c.SnapshotPrefix,
		Logger: logger,
	}, nil
}
