package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the shape of an optional --config YAML file. Any field left
// unset defers to the flag's own default; an explicit flag always wins over
// a value loaded here.
type fileConfig struct {
	Input     string `yaml:"input"`
	Recursive bool   `yaml:"recursive"`
	CallingAE string `yaml:"callingAe"`
	AETitle   string `yaml:"aeTitle"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Threads   int    `yaml:"threads"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
