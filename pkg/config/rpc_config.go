package config

// RPC is an RPC service configuration information.
type RPC struct {
	BasicService `yaml:",inline"`
	// EnableCORSWorkaround sets the Access-Control-Allow-* headers and
	// handles preflight OPTIONS requests.
	EnableCORSWorkaround bool `yaml:"EnableCORSWorkaround"`
	// MaxWebSocketClients is the maximum simultaneous websocket client
	// number.
	MaxWebSocketClients int `yaml:"MaxWebSocketClients"`
}
