package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the shape of an optional --config YAML file. Any field left
// unset defers to the flag's own default; an explicit flag always wins over
// a value loaded here.
type fileConfig struct {
	Output         string `yaml:"output"`
	AETitle        string `yaml:"aeTitle"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"maxConnections"`
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
