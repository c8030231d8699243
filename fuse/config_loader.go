package fuse

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the service configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Validate required fields
	if config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	if len(config.Cameras) == 0 {
		return nil, fmt.Errorf("at least one camera must be defined")
	}

	// Validate camera configs
	for i, cc := range config.Cameras {
		if cc.ID == "" {
			return nil, fmt.Errorf("camera[%d].id is required", i)
		}
		if cc.Topic == "" && cc.ApiURL == nil {
			return nil, fmt.Errorf("camera[%d].topic or apiUrl is required for %s", i, cc.ID)
		}
	}

	// Apply defaults
	if config.GridSpacing == 0 {
		config.GridSpacing = 1000.0
	}
	if config.VectorResolution == 0 {
		config.VectorResolution = 300.0
	}
	if config.SaveIntervalSec == 0 {
		config.SaveIntervalSec = 60
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
