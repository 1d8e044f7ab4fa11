package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/nonceguard-go/internal/cli/connection"
)

// RemoteCommand returns the remote subcommand group.
func RemoteCommand() *cli.Command {
	actionFlag := &cli.StringFlag{
		Name:     "action",
		Aliases:  []string{"a"},
		Usage:    "Action the nonce protects",
		Required: true,
	}
	subjectFlag := &cli.StringFlag{
		Name:  "subject",
		Usage: "Caller identity the nonce is bound to",
	}
	tokenFlag := &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Nonce to verify",
	}

	return &cli.Command{
		Name:  "remote",
		Usage: "Talk to a running nonceguard server",
		Subcommands: []*cli.Command{
			{
				Name:   "issue",
				Usage:  "Issue a nonce",
				Flags:  []cli.Flag{actionFlag, subjectFlag},
				Action: remoteIssue,
			},
			{
				Name:  "verify",
				Usage: "Verify a nonce; exits 1 when invalid",
				Flags: []cli.Flag{actionFlag, subjectFlag, tokenFlag,
					&cli.BoolFlag{
						Name:  "consume",
						Usage: "Reject later presentations of the same nonce",
					},
				},
				Action: remoteVerify,
			},
			{
				Name:   "guard",
				Usage:  "Run a forward-auth check; exits 1 when rejected",
				Flags:  []cli.Flag{actionFlag, subjectFlag, tokenFlag},
				Action: remoteGuard,
			},
			{
				Name:  "health",
				Usage: "Check server health",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "ready",
						Usage: "Check readiness instead of liveness",
					},
				},
				Action: remoteHealth,
			},
		},
	}
}

func remoteIssue(c *cli.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := cl.IssueNonce(ctx, c.String("action"), c.String("subject"))
	if err != nil {
		return err
	}
	return render(c, resp)
}

func remoteVerify(c *cli.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := cl.VerifyNonce(ctx, c.String("action"), c.String("subject"), c.String("token"), c.Bool("consume"))
	var apiErr *connection.APIError
	if errors.As(err, &apiErr) && apiErr.Code == "NG-NONCE-4000" {
		return cli.Exit(apiErr.Error(), ExitMalformed)
	}
	if err != nil {
		return err
	}

	if err := render(c, VerifyOutput{
		Result:    resp.Result,
		Valid:     resp.Valid,
		Tick:      resp.Tick,
		Replayed:  resp.Replayed,
		ExpiresAt: resp.ExpiresAt,
	}); err != nil {
		return err
	}
	if !resp.Valid {
		return cli.Exit("", ExitInvalid)
	}
	return nil
}

func remoteGuard(c *cli.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := cl.Guard(ctx, c.String("action"), c.String("subject"), c.String("token"))
	var apiErr *connection.APIError
	if errors.As(err, &apiErr) {
		return cli.Exit(apiErr.Error(), ExitInvalid)
	}
	if err != nil {
		return err
	}
	return render(c, resp)
}

func remoteHealth(c *cli.Context) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	resp, err := cl.Health(ctx, c.Bool("ready"))
	if err != nil {
		return err
	}
	return render(c, resp)
}
