// Package config declares the configuration keys understood by iroh-send and
// installs their defaults into viper. The shared secret is only ever read from
// the environment (IROH_SEND_TOKEN); everything else can come from flags or a
// config file.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type ConfigKey string

const (
	Token       ConfigKey = "token"
	ChunkSize   ConfigKey = "chunk_size"
	DestDir     ConfigKey = "dest_dir"
	MaxAttempts ConfigKey = "max_attempts"
	RetryDelay  ConfigKey = "retry_delay"
	ListenAddrs ConfigKey = "listen_addrs"
	Verbose     ConfigKey = "verbose"
)

var defaultConfig = map[ConfigKey]any{
	ChunkSize:   "5m",
	DestDir:     ".",
	MaxAttempts: 30,
	RetryDelay:  "1s",
	ListenAddrs: []string{
		"/ip4/0.0.0.0/tcp/0",
		"/ip4/0.0.0.0/udp/0/quic-v1",
		"/ip6/::/tcp/0",
		"/ip6/::/udp/0/quic-v1",
	},
}

func init() {
	viper.SetConfigName("iroh-send")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.iroh-send")
	viper.SetEnvPrefix("iroh_send")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for k, v := range defaultConfig {
		viper.SetDefault(string(k), v)
	}
}

// Default returns the built-in default for a key, nil when the key has none.
func Default(k ConfigKey) any { return defaultConfig[k] }

func GetString(k ConfigKey) string      { return viper.GetString(string(k)) }
func GetInt(k ConfigKey) int            { return viper.GetInt(string(k)) }
func GetBool(k ConfigKey) bool          { return viper.GetBool(string(k)) }
func GetStringSlice(k ConfigKey) []string { return viper.GetStringSlice(string(k)) }
