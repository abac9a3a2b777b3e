// Package pipeline runs one send_email invocation: load inputs, render the
// body, compose the message and hand it to the relay.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/uponusolutions/template-email-sender/compose"
	"github.com/uponusolutions/template-email-sender/config"
	"github.com/uponusolutions/template-email-sender/input"
	"github.com/uponusolutions/template-email-sender/logging"
	"github.com/uponusolutions/template-email-sender/render"
)

// Sender submits an RFC 5322 message. *mailer.Mailer implements it.
type Sender interface {
	Send(ctx context.Context, from string, rcpt []string, in io.Reader) error
}

// Deps are the collaborators of a run.
type Deps struct {
	SMTP     config.SMTP
	Renderer *render.Renderer
	Sender   Sender
	Logger   *slog.Logger

	// Markdown adds an HTML alternative rendered from the body.
	Markdown bool
	// DryRun receives the composed message instead of Sender when set.
	DryRun io.Writer
}

// Run executes the stages in order and stops at the first failure.
// Nothing is sent unless the message was composed completely.
func Run(ctx context.Context, deps Deps, args input.Args) error {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = render.New()
	}

	logger.Debug("run started", slog.Any("smtp", deps.SMTP), slog.Bool("permissive", renderer.Permissive()))

	in, err := input.Load(args, deps.SMTP.Login)
	if err != nil {
		return err
	}
	logger.Debug("inputs loaded",
		slog.String("data", args.Data),
		slog.String("template", in.TemplatePath),
		slog.Int("vars", len(in.Vars)),
	)

	body, err := renderer.RenderFile(in.TemplatePath, in.Vars)
	if err != nil {
		return err
	}
	logger.Debug("body rendered", slog.Int("bytes", len(body)))

	var opts []compose.Option
	if args.Attachment != "" {
		opts = append(opts, compose.WithAttachment(args.Attachment))
	}
	if deps.Markdown {
		html, err := renderer.RenderHTML(body)
		if err != nil {
			return err
		}
		opts = append(opts, compose.WithHTML(html))
	}

	msg, err := compose.New(deps.SMTP.Login, args.RecipientEmail, args.Subject, body, opts...)
	if err != nil {
		return err
	}
	logger.Debug("message composed",
		slog.String("to", args.RecipientEmail),
		slog.Int("parts", msg.PartCount()),
		slog.Any("content_types", msg.ContentTypes()),
	)

	if deps.DryRun != nil {
		if _, err := msg.WriteTo(deps.DryRun); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		logger.Info("dry run, message not sent")
		return nil
	}

	if deps.Sender == nil {
		return errors.New("no sender configured")
	}

	raw, err := msg.Bytes()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := deps.Sender.Send(ctx, msg.From(), msg.To(), bytes.NewReader(raw)); err != nil {
		return err
	}

	logger.Info("email sent", slog.String("to", args.RecipientEmail), slog.String("subject", args.Subject))
	return nil
}
