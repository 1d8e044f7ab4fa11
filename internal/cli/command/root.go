package command

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/nonceguard-go/internal/cli/config"
	"github.com/yndnr/nonceguard-go/internal/cli/connection"
	"github.com/yndnr/nonceguard-go/internal/cli/output"
	"github.com/yndnr/nonceguard-go/internal/infra/buildinfo"
	"github.com/yndnr/nonceguard-go/internal/infra/tlsroots"
)

// Exit statuses.
const (
	ExitInvalid   = 1 // nonce did not verify
	ExitMalformed = 2 // candidate rejected as malformed
)

const metadataCLIConfig = "cliConfig"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "nonceguard-cli",
		Usage:   "Issue and verify time-windowed nonces",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			IssueCommand(),
			VerifyCommand(),
			RemoteCommand(),
			ConfigCommand(),
			APIKeyCommand(),
		},
		Before: loadCLIConfig,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "nonceguard server address for remote commands",
			EnvVars: []string{"NONCEGUARD_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"NONCEGUARD_OUTPUT"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "Extra CA certificate (PEM) for https servers",
			EnvVars: []string{"NONCEGUARD_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key for remote commands, as <key_id>:<secret>",
			EnvVars: []string{"NONCEGUARD_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "cli-config",
			Usage:   "CLI preferences file",
			EnvVars: []string{"NONCEGUARD_CLI_CONFIG"},
			Value:   cliconfig.DefaultConfigPath(),
		},
	}
}

func loadCLIConfig(c *cli.Context) error {
	cfg, err := cliconfig.Load(c.String("cli-config"))
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[metadataCLIConfig] = cfg
	return nil
}

// GlobalFlags holds the effective global settings.
type GlobalFlags struct {
	Server string
	Output output.Format
	CAFile string
	APIKey string
}

// CLIConfig returns the loaded CLI preferences, or the defaults.
func CLIConfig(c *cli.Context) *cliconfig.CLIConfig {
	if cfg, ok := c.App.Metadata[metadataCLIConfig].(*cliconfig.CLIConfig); ok {
		return cfg
	}
	return cliconfig.Default()
}

// ParseGlobalFlags resolves global flags, falling back to the CLI config.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg := CLIConfig(c)

	server := c.String("server")
	if server == "" {
		server = cfg.Server
	}
	outputName := c.String("output")
	if outputName == "" {
		outputName = cfg.Output
	}
	format, err := output.ParseFormat(outputName)
	if err != nil {
		return nil, err
	}
	caFile := c.String("ca-file")
	if caFile == "" {
		caFile = cfg.CAFile
	}
	apiKey := c.String("api-key")
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	return &GlobalFlags{Server: server, Output: format, CAFile: caFile, APIKey: apiKey}, nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output).Format(writer(c), data)
}

// client builds an HTTP client for the selected server.
func client(c *cli.Context) (*connection.HTTPClient, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	var opts []connection.ClientOption
	if flags.APIKey != "" {
		keyID, secret, ok := strings.Cut(flags.APIKey, ":")
		if !ok || keyID == "" || secret == "" {
			return nil, fmt.Errorf("--api-key must be <key_id>:<secret>")
		}
		opts = append(opts, connection.WithAPIKey(keyID, secret))
	}
	if flags.CAFile != "" {
		tlsCfg, err := tlsroots.ClientConfig(tlsroots.ClientOptions{CAFile: flags.CAFile})
		if err != nil {
			return nil, err
		}
		opts = append(opts, connection.WithTLSConfig(tlsCfg))
	}
	return connection.NewHTTPClient(flags.Server, opts...), nil
}

func writer(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
