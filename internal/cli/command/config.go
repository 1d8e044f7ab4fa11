package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	servercfg "github.com/yndnr/nonceguard-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	fileFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Server configuration file",
		EnvVars: []string{"NONCEGUARD_CONFIG"},
	}

	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate a server configuration (file, then NONCEGUARD_* environment)",
				Flags:  []cli.Flag{fileFlag},
				Action: configValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective server configuration with secrets masked",
				Flags: []cli.Flag{fileFlag,
					&cli.BoolFlag{
						Name:  "defaults",
						Usage: "Show built-in defaults instead of loading any source",
					},
				},
				Action: configShow,
			},
			{
				Name:   "cli",
				Usage:  "Show the CLI preferences in effect",
				Action: configCLIShow,
			},
		},
	}
}

func configValidate(c *cli.Context) error {
	path := c.String("config")
	cfg, _, err := servercfg.Load(path, nil)
	if err != nil {
		return err
	}
	if _, err := servercfg.ResolveSecret(cfg); err != nil {
		return err
	}

	if path == "" {
		path = "(environment only)"
	}
	fmt.Fprintf(writer(c), "configuration is valid: %s\n", path)
	return nil
}

func configShow(c *cli.Context) error {
	cfg := servercfg.Default()
	if !c.Bool("defaults") {
		loaded, _, err := servercfg.Load(c.String("config"), nil)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	return render(c, servercfg.Flatten(servercfg.Sanitize(cfg)))
}

func configCLIShow(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg := CLIConfig(c)
	return render(c, map[string]string{
		"config_file": c.String("cli-config"),
		"server":      flags.Server,
		"output":      string(flags.Output),
		"secret_file": cfg.SecretFile,
		"ca_file":     flags.CAFile,
		"api_key":     maskAPIKey(flags.APIKey),
	})
}
