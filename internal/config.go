package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const configDirName = ".speedtest"

// ServerConfig holds everything the speed test server needs at startup.
// Service ports are not configured here: they are picked at random from
// [port_range_min, port_range_max) when the server starts.
type ServerConfig struct {
	OfferPort         int    `mapstructure:"offer_port"`
	BroadcastInterval int    `mapstructure:"broadcast_interval_sec"`
	BroadcastAddr     string `mapstructure:"broadcast_addr"`
	PortRangeMin      int    `mapstructure:"port_range_min"`
	PortRangeMax      int    `mapstructure:"port_range_max"`
	MaxHandlers       int    `mapstructure:"max_handlers"`
	MetricsPort       int    `mapstructure:"metrics_port"`
	ServerID          string `mapstructure:"server_id"`
	LogLevel          string `mapstructure:"log_level"`
}

// ClientConfig holds client defaults. File size and connection counts are
// operator inputs; the values here only seed the prompts and flags.
type ClientConfig struct {
	OfferPort      int    `mapstructure:"offer_port"`
	FileSize       uint64 `mapstructure:"file_size"`
	TCPConns       int    `mapstructure:"tcp_conns"`
	UDPConns       int    `mapstructure:"udp_conns"`
	UDPTimeoutSec  int    `mapstructure:"udp_timeout_sec"`
	TCPTimeoutSec  int    `mapstructure:"tcp_timeout_sec"`
	DialTimeoutSec int    `mapstructure:"dial_timeout_sec"`
	ClientUUID     string `mapstructure:"client_uuid"`
	LogLevel       string `mapstructure:"log_level"`
}

func LoadServerConfig(configPath string) (*ServerConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	v, fileRead, err := initViper(configPath, filepath.Join(home, configDirName), "server_config", "toml", "SPEEDTEST_SERVER")
	if err != nil {
		return nil, err
	}

	v.SetDefault("offer_port", 13117)
	v.SetDefault("broadcast_interval_sec", 1)
	v.SetDefault("broadcast_addr", "255.255.255.255")
	v.SetDefault("port_range_min", 20000)
	v.SetDefault("port_range_max", 65000)
	v.SetDefault("max_handlers", 64)
	v.SetDefault("metrics_port", 0)
	v.SetDefault("server_id", uuid.New().String())
	v.SetDefault("log_level", "info")

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal server config: %w", err)
	}
	if cfg.PortRangeMin <= 0 || cfg.PortRangeMax <= cfg.PortRangeMin {
		return nil, fmt.Errorf("invalid service port range [%d, %d)", cfg.PortRangeMin, cfg.PortRangeMax)
	}

	// Create-on-first-run ONLY (no config file was read)
	if !fileRead {
		writePath := configPath
		if writePath == "" {
			writePath = filepath.Join(home, configDirName, "server_config.toml")
		}
		if _, statErr := os.Stat(writePath); errors.Is(statErr, os.ErrNotExist) {
			if _, err := cfg.Save(writePath); err != nil {
				return nil, fmt.Errorf("persist default server config: %w", err)
			}
			Info("server config written", Fields{
				ConfigPath: writePath,
			})
		}
	}

	return &cfg, nil
}

func LoadClientConfig(configPath string) (*ClientConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	v, fileRead, err := initViper(configPath, filepath.Join(home, configDirName), "client_config", "toml", "SPEEDTEST_CLIENT")
	if err != nil {
		return nil, err
	}

	v.SetDefault("offer_port", 13117)
	v.SetDefault("file_size", 1<<20)
	v.SetDefault("tcp_conns", 1)
	v.SetDefault("udp_conns", 1)
	v.SetDefault("udp_timeout_sec", 5)
	v.SetDefault("tcp_timeout_sec", 10)
	v.SetDefault("dial_timeout_sec", 5)
	v.SetDefault("client_uuid", uuid.New().String())
	v.SetDefault("log_level", "info")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}

	if !fileRead {
		writePath := configPath
		if writePath == "" {
			writePath = filepath.Join(home, configDirName, "client_config.toml")
		}
		if _, statErr := os.Stat(writePath); errors.Is(statErr, os.ErrNotExist) {
			if _, err := cfg.Save(writePath); err != nil {
				return nil, fmt.Errorf("persist default client config: %w", err)
			}
			Info("client config written", Fields{
				ConfigPath: writePath,
			})
		}
	}

	return &cfg, nil
}

func initViper(configPath, defaultDir, defaultName, defaultType, envPrefix string) (*viper.Viper, bool, error) {
	v := viper.New()
	v.SetConfigType(defaultType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(defaultDir)
		v.AddConfigPath(".")
		v.SetConfigName(defaultName)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine either way: defaults apply and the config
		// is persisted on first run.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			Error("failed reading config file", Fields{
				ConfigPath: configPath,
			})
			return nil, false, fmt.Errorf("read config: %w", err)
		}
		return v, false, nil
	}
	return v, true, nil
}

func (cfg *ServerConfig) Save(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(home, configDirName, "server_config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("offer_port", cfg.OfferPort)
	v.Set("broadcast_interval_sec", cfg.BroadcastInterval)
	v.Set("broadcast_addr", cfg.BroadcastAddr)
	v.Set("port_range_min", cfg.PortRangeMin)
	v.Set("port_range_max", cfg.PortRangeMax)
	v.Set("max_handlers", cfg.MaxHandlers)
	v.Set("metrics_port", cfg.MetricsPort)
	v.Set("server_id", cfg.ServerID)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write server config: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}

func (cfg *ClientConfig) Save(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(home, configDirName, "client_config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("offer_port", cfg.OfferPort)
	v.Set("file_size", cfg.FileSize)
	v.Set("tcp_conns", cfg.TCPConns)
	v.Set("udp_conns", cfg.UDPConns)
	v.Set("udp_timeout_sec", cfg.UDPTimeoutSec)
	v.Set("tcp_timeout_sec", cfg.TCPTimeoutSec)
	v.Set("dial_timeout_sec", cfg.DialTimeoutSec)
	v.Set("client_uuid", cfg.ClientUUID)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write client config: %w", err)
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}
