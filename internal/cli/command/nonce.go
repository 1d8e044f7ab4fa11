package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/nonceguard-go/pkg/nonce"
)

// IssueOutput is the result of a local issue.
type IssueOutput struct {
	Token           string    `json:"token" yaml:"token"`
	Action          string    `json:"action" yaml:"action"`
	Subject         string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	LifetimeSeconds int64     `json:"lifetime_seconds" yaml:"lifetime_seconds"`
	Bucket          int64     `json:"bucket" yaml:"bucket"`
	IssuedAt        time.Time `json:"issued_at" yaml:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at" yaml:"expires_at"`
}

// VerifyOutput is the result of a local or remote verify.
type VerifyOutput struct {
	Result    string     `json:"result" yaml:"result"`
	Valid     bool       `json:"valid" yaml:"valid"`
	Tick      int        `json:"tick" yaml:"tick"`
	Replayed  bool       `json:"replayed,omitempty" yaml:"replayed,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// localFlags are shared by the local issue and verify commands.
func localFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "action",
			Aliases:  []string{"a"},
			Usage:    "Action the nonce protects (e.g. delete-post-42)",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "subject",
			Usage: "Caller identity the nonce is bound to",
		},
		&cli.DurationFlag{
			Name:    "lifetime",
			Aliases: []string{"l"},
			Usage:   "Bucket width; tokens verify for between one and two lifetimes",
			Value:   nonce.DefaultLifetime,
		},
		&cli.StringFlag{
			Name:  "at",
			Usage: "Evaluate at this instant (unix seconds or RFC 3339) instead of now",
		},
		&cli.StringFlag{
			Name:    "secret",
			Usage:   "Installation secret",
			EnvVars: []string{"NONCEGUARD_SECRET"},
		},
		&cli.StringFlag{
			Name:    "secret-file",
			Usage:   "File holding the installation secret",
			EnvVars: []string{"NONCEGUARD_SECRET_FILE"},
		},
		&cli.IntFlag{
			Name:  "max-length",
			Usage: "Longest candidate accepted before it is rejected as malformed",
			Value: nonce.DefaultMaxTokenLength,
		},
	}
}

// IssueCommand returns the local issue command.
func IssueCommand() *cli.Command {
	return &cli.Command{
		Name:   "issue",
		Usage:  "Issue a nonce locally from the installation secret",
		Flags:  localFlags(),
		Action: issueLocal,
	}
}

// VerifyCommand returns the local verify command.
func VerifyCommand() *cli.Command {
	flags := append(localFlags(), &cli.StringFlag{
		Name:     "token",
		Aliases:  []string{"t"},
		Usage:    "Nonce to verify",
		Required: true,
	})
	return &cli.Command{
		Name:   "verify",
		Usage:  "Verify a nonce locally; exits 1 when invalid",
		Flags:  flags,
		Action: verifyLocal,
	}
}

func issueLocal(c *cli.Context) error {
	tc, at, err := localContext(c)
	if err != nil {
		return err
	}

	token := nonce.Issue(tc, at)
	return render(c, IssueOutput{
		Token:           token.String(),
		Action:          tc.Action(),
		Subject:         tc.Subject(),
		LifetimeSeconds: int64(tc.Lifetime().Seconds()),
		Bucket:          nonce.Bucket(tc, at),
		IssuedAt:        at.UTC(),
		ExpiresAt:       nonce.Expiry(tc, nonce.Fresh, at).UTC(),
	})
}

func verifyLocal(c *cli.Context) error {
	tc, at, err := localContext(c)
	if err != nil {
		return err
	}

	result, err := nonce.Verify(tc, c.String("token"), at)
	if err != nil {
		if errors.Is(err, nonce.ErrMalformedInput) {
			return cli.Exit(err.Error(), ExitMalformed)
		}
		return err
	}

	out := VerifyOutput{
		Result: result.String(),
		Valid:  result.Valid(),
		Tick:   int(result),
	}
	if exp := nonce.Expiry(tc, result, at); !exp.IsZero() {
		exp = exp.UTC()
		out.ExpiresAt = &exp
	}
	if err := render(c, out); err != nil {
		return err
	}
	if !result.Valid() {
		return cli.Exit("", ExitInvalid)
	}
	return nil
}

// localContext builds the token context and evaluation time from flags.
func localContext(c *cli.Context) (nonce.TokenContext, time.Time, error) {
	secret, err := resolveSecret(c)
	if err != nil {
		return nonce.TokenContext{}, time.Time{}, err
	}

	at, err := parseAt(c.String("at"), time.Now)
	if err != nil {
		return nonce.TokenContext{}, time.Time{}, err
	}

	tc, err := nonce.NewTokenContext(c.String("action"), c.Duration("lifetime"), secret,
		nonce.WithSubject(c.String("subject")),
		nonce.WithMaxTokenLength(c.Int("max-length")),
	)
	if err != nil {
		return nonce.TokenContext{}, time.Time{}, err
	}
	return tc, at, nil
}

// resolveSecret reads --secret, then --secret-file, then the CLI config's
// secret_file.
func resolveSecret(c *cli.Context) ([]byte, error) {
	if s := c.String("secret"); s != "" {
		if c.String("secret-file") != "" {
			return nil, errors.New("--secret and --secret-file are mutually exclusive")
		}
		return []byte(s), nil
	}

	path := c.String("secret-file")
	if path == "" {
		path = CLIConfig(c).SecretFile
	}
	if path == "" {
		return nil, errors.New("an installation secret is required (--secret, --secret-file or NONCEGUARD_SECRET)")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	secret := bytes.TrimSpace(data)
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

// parseAt parses unix seconds or RFC 3339; empty means now.
func parseAt(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at %q: want unix seconds or RFC 3339", s)
	}
	return t, nil
}
