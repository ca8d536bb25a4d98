package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"slotdb"
	"slotdb/logger"
)

// Config is the YAML configuration shared by every command.
type Config struct {
	PoolSize     int          `yaml:"pool_size"`
	InitialPages uint64       `yaml:"initial_pages"`
	Sync         *bool        `yaml:"sync"`
	DirectIO     bool         `yaml:"direct_io"`
	LogLevel     logrus.Level `yaml:"log_level"`
	LogFormat    string       `yaml:"log_format"` // text, json or zap
}

func defaultConfig() *Config {
	return &Config{
		PoolSize:  slotdb.DefaultPoolSize,
		LogLevel:  logrus.WarnLevel,
		LogFormat: "text",
	}
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	configFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer configFile.Close()

	if err := decodeConfig(configFile, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeConfig(r io.Reader, config *Config) error {
	configDecoder := yaml.NewDecoder(r)
	if err := configDecoder.Decode(config); err != nil && err != io.EOF {
		return fmt.Errorf("parsing config file: %w", err)
	}
	switch config.LogFormat {
	case "text", "json", "zap":
	default:
		return fmt.Errorf("parsing config file: unknown log_format %q", config.LogFormat)
	}
	return nil
}

// Logger builds the logger named by the config with args attached to every
// entry. The returned function flushes buffered output.
func (c *Config) Logger(out io.Writer, args ...any) (slotdb.Logger, func()) {
	if c.LogFormat == "zap" {
		encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		core := zapcore.NewCore(encoder, zapcore.AddSync(out), zapLevel(c.LogLevel))
		z := zap.New(core)
		return logger.NewZap(z, args...), func() { _ = z.Sync() }
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger.NewLogrus(l, args...), func() {}
}

func zapLevel(l logrus.Level) zapcore.Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return zapcore.FatalLevel
	case logrus.ErrorLevel:
		return zapcore.ErrorLevel
	case logrus.WarnLevel:
		return zapcore.WarnLevel
	case logrus.InfoLevel:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

// Options translates the config into database options.
func (c *Config) Options(l slotdb.Logger) []slotdb.Option {
	opts := []slotdb.Option{
		slotdb.WithPoolSize(c.PoolSize),
		slotdb.WithLogger(l),
	}
	if c.InitialPages > 0 {
		opts = append(opts, slotdb.WithInitialPages(c.InitialPages))
	}
	if c.Sync != nil && !*c.Sync {
		opts = append(opts, slotdb.WithSyncOff())
	}
	if c.DirectIO {
		opts = append(opts, slotdb.WithDirectIO())
	}
	return opts
}
