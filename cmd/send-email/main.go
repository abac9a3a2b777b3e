// Command send_email renders a template for one recipient and sends it
// through the SMTP relay configured in the environment.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/uponusolutions/template-email-sender/config"
	"github.com/uponusolutions/template-email-sender/input"
	"github.com/uponusolutions/template-email-sender/logging"
	"github.com/uponusolutions/template-email-sender/mailer"
	"github.com/uponusolutions/template-email-sender/pipeline"
	"github.com/uponusolutions/template-email-sender/render"
)

const commandName = "send_email"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	if err := newApp(stdout).RunContext(ctx, args); err != nil {
		_, _ = fmt.Fprintf(stdout, "%s: %v\n", commandName, err)
		return 1
	}
	return 0
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      commandName,
		Usage:     "render a template for one recipient and send it over SMTP",
		UsageText: commandName + " -data FILE -recipient_email ADDR -recipient_first_name NAME -recipient_last_name NAME -subject TEXT [-template FILE] [-attachment FILE]",
		Description: "SMTP settings are read from the environment or an .env file:\n" +
			"  GMAIL_SMTP_SERVER, GMAIL_SMTP_PORT, GMAIL_LOGIN_EMAIL, GMAIL_LOGIN_PASSWORD",
		Writer:          stdout,
		ErrWriter:       stdout,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Usage: "template `FILE`, defaults to template_file of the data file"},
			&cli.StringFlag{Name: "data", Usage: "YAML data `FILE` (required)"},
			&cli.StringFlag{Name: "recipient_email", Usage: "recipient `ADDRESS` (required)"},
			&cli.StringFlag{Name: "recipient_first_name", Usage: "recipient first `NAME` (required)"},
			&cli.StringFlag{Name: "recipient_last_name", Usage: "recipient last `NAME` (required)"},
			&cli.StringFlag{Name: "subject", Usage: "subject `TEXT` (required)"},
			&cli.StringFlag{Name: "attachment", Usage: "PDF `FILE` to attach"},
			&cli.BoolFlag{Name: "permissive", Usage: "render unknown variables as empty text"},
			&cli.BoolFlag{Name: "markdown", Usage: "add an HTML alternative rendered from the body as markdown"},
			&cli.BoolFlag{Name: "dry-run", Usage: "print the composed message instead of sending it"},
			&cli.StringFlag{Name: "env-file", Value: config.DefaultEnvFile, Usage: "dotenv `FILE` with the SMTP settings"},
			&cli.StringFlag{Name: "log-file", Value: logging.DefaultFile, Usage: "run log `FILE`, truncated on start"},
		},
		Action: func(c *cli.Context) error {
			return send(c, stdout)
		},
	}
}

func send(c *cli.Context, stdout io.Writer) (err error) {
	logger, closeLog, err := logging.Open(c.String("log-file"))
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			logger.Error("send failed", slog.Any("error", err))
		}
		_ = closeLog()
	}()

	args := input.Args{
		Template:           c.String("template"),
		Data:               c.String("data"),
		RecipientEmail:     c.String("recipient_email"),
		RecipientFirstName: c.String("recipient_first_name"),
		RecipientLastName:  c.String("recipient_last_name"),
		Subject:            c.String("subject"),
		Attachment:         c.String("attachment"),
	}
	if err := args.Validate(); err != nil {
		return err
	}

	if err := config.LoadDotEnv(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.LoadSMTP()
	if err != nil {
		return err
	}

	var renderOpts []render.Option
	if c.Bool("permissive") {
		renderOpts = append(renderOpts, render.WithPermissive())
	}

	deps := pipeline.Deps{
		SMTP:     cfg,
		Renderer: render.New(renderOpts...),
		Logger:   logger,
		Markdown: c.Bool("markdown"),
		Sender: mailer.New(
			mailer.WithServerAddress(cfg.Address()),
			mailer.WithCredentials(cfg.Login, cfg.Password),
			mailer.WithLogger(logger),
		),
	}
	if c.Bool("dry-run") {
		deps.DryRun = stdout
	}

	return pipeline.Run(c.Context, deps, args)
}
