// Package emailsender contains code shared by the loader, renderer, composer
// and mailer packages, e.g. the error taxonomy and SMTPError.
//
// Every failure of a send_email invocation wraps exactly one of the sentinel
// errors below, so callers can classify it with errors.Is.
package emailsender

import "errors"

var (
	// ErrMissingArgument indicates a required command line argument is absent.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrConfig indicates an invalid environment configuration value.
	ErrConfig = errors.New("invalid configuration")

	// ErrDataFileNotFound indicates the YAML data file does not exist.
	ErrDataFileNotFound = errors.New("no such data file")

	// ErrDataParse indicates the data file is not a valid YAML mapping.
	ErrDataParse = errors.New("invalid data file")

	// ErrTemplateUnspecified indicates neither -template nor template_file was given.
	ErrTemplateUnspecified = errors.New("no template specified")

	// ErrTemplateNotFound indicates the template file does not exist.
	ErrTemplateNotFound = errors.New("no such template file")

	// ErrTemplateSyntax indicates a malformed template.
	ErrTemplateSyntax = errors.New("template syntax error")

	// ErrUndefinedVariable indicates a template references an unbound key.
	ErrUndefinedVariable = errors.New("undefined template variable")

	// ErrInvalidAddress indicates a sender or recipient address that cannot be used.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrAttachmentNotFound indicates the attachment file does not exist.
	ErrAttachmentNotFound = errors.New("no such attachment file")

	// ErrSMTPConnection indicates the relay could not be reached or the
	// session could not be secured.
	ErrSMTPConnection = errors.New("smtp connection failed")

	// ErrSMTPAuth indicates the relay rejected the login.
	ErrSMTPAuth = errors.New("smtp authentication failed")

	// ErrSMTPSend indicates the relay rejected the message envelope or content.
	ErrSMTPSend = errors.New("smtp send failed")
)
