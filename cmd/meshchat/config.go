package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/opd-ai/meshchat"
	"github.com/urfave/cli/v2"
)

// fileConfig is the TOML config file layout. Durations are strings in
// time.ParseDuration syntax.
type fileConfig struct {
	DataDir          string   `toml:"data_dir"`
	ListenAddr       string   `toml:"listen_addr"`
	Peers            []string `toml:"peers"`
	AnnounceInterval string   `toml:"announce_interval"`
	AnnounceDelay    string   `toml:"announce_delay"`
	RedialInterval   string   `toml:"redial_interval"`
	DialTimeout      string   `toml:"dial_timeout"`
	Store            string   `toml:"store"`
	LogLevel         string   `toml:"log_level"`
	LogFile          string   `toml:"log_file"`
	MetricsAddr      string   `toml:"metrics_addr"`
}

// loadConfigFile applies the config file at path over the defaults.
func loadConfigFile(path string, opts *meshchat.Options) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	setString(&opts.DataDir, fc.DataDir)
	setString(&opts.ListenAddr, fc.ListenAddr)
	setString(&opts.LogLevel, fc.LogLevel)
	setString(&opts.LogFile, fc.LogFile)
	setString(&opts.MetricsAddr, fc.MetricsAddr)
	if fc.Store != "" {
		opts.StoreBackend = meshchat.StoreBackend(fc.Store)
	}
	if len(fc.Peers) > 0 {
		opts.Peers = fc.Peers
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"announce_interval", fc.AnnounceInterval, &opts.AnnounceInterval},
		{"announce_delay", fc.AnnounceDelay, &opts.AnnounceDelay},
		{"redial_interval", fc.RedialInterval, &opts.RedialInterval},
		{"dial_timeout", fc.DialTimeout, &opts.DialTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.key, path, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// buildOptions resolves the node options: defaults, then the config file,
// then any flags given on the command line.
func buildOptions(ctx *cli.Context) (*meshchat.Options, error) {
	opts := meshchat.NewOptions()

	if path := ctx.String(configFlag.Name); path != "" {
		if err := loadConfigFile(path, opts); err != nil {
			return nil, err
		}
	}

	if ctx.IsSet(dataDirFlag.Name) {
		opts.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(listenFlag.Name) {
		opts.ListenAddr = ctx.String(listenFlag.Name)
	}
	if ctx.IsSet(peerFlag.Name) {
		opts.Peers = ctx.StringSlice(peerFlag.Name)
	}
	if ctx.IsSet(storeFlag.Name) {
		opts.StoreBackend = meshchat.StoreBackend(ctx.String(storeFlag.Name))
	}
	if ctx.IsSet(logLevelFlag.Name) {
		opts.LogLevel = ctx.String(logLevelFlag.Name)
	}
	if ctx.IsSet(logFileFlag.Name) {
		opts.LogFile = ctx.String(logFileFlag.Name)
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		opts.MetricsAddr = ctx.String(metricsAddrFlag.Name)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
