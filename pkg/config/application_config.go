package config

import (
	"github.com/dankorotin/countergo/pkg/core/storage/dbconfig"
)

// ApplicationConfiguration config specific to the node.
type ApplicationConfiguration struct {
	LogLevel        string                    `yaml:"LogLevel"`
	LogPath         string                    `yaml:"LogPath"`
	DBConfiguration dbconfig.DBConfiguration  `yaml:"DBConfiguration"`
	Pprof           BasicService              `yaml:"Pprof"`
	Prometheus      BasicService              `yaml:"Prometheus"`
	RPC             RPC                       `yaml:"RPC"`
}

// EqualsButServices returns true when the o is the same as a except for
// services (Pprof, Prometheus and RPC sections).
func (a *ApplicationConfiguration) EqualsButServices(o *ApplicationConfiguration) bool {
	return a.LogLevel == o.LogLevel &&
		a.LogPath == o.LogPath &&
		a.DBConfiguration == o.DBConfiguration
}
