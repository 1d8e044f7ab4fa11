package config

// CLIConfig is the configuration for nonceguard-cli.
type CLIConfig struct {
	// Server is the default server for remote commands.
	Server string `yaml:"server"`

	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// SecretFile is the default installation secret for local commands.
	SecretFile string `yaml:"secret_file,omitempty"`

	// CAFile is trusted, in addition to the system roots, for https servers.
	CAFile string `yaml:"ca_file,omitempty"`

	// APIKey authenticates remote commands, as "<key_id>:<secret>".
	APIKey string `yaml:"api_key,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "http://127.0.0.1:5480",
		Output: "table",
	}
}
