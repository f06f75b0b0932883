/*
Package config contains the configuration of the countergo node: the
protocol part that defines the behavior of the counter contract itself and
the application part that configures the services around it.
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the version of the node, set at build time.
var Version string

// Config is the top level struct representing the config for the node.
type Config struct {
	ProtocolConfiguration    ProtocolConfiguration    `yaml:"ProtocolConfiguration"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// UserAgent returns a user agent string based on the build time environment.
func UserAgent() string {
	return fmt.Sprintf("/countergo:%s/", Version)
}

// Load attempts to load the config from the given bytes.
func Load(data []byte) (Config, error) {
	config := Config{
		ProtocolConfiguration: ProtocolConfiguration{
			GasLimit: DefaultGasLimit,
			GasTable: defaultGasTable(),
		},
	}
	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.ProtocolConfiguration.Validate()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadFile loads config from the provided path.
func LoadFile(configPath string) (Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("config '%s' doesn't exist or is unreadable: %w", configPath, err)
	}
	return Load(configData)
}
