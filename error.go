package emailsender

import (
	"errors"
	"fmt"
)

// EnhancedCode is the SMTP enhanced code
type EnhancedCode [3]int

// SMTPError specifies the reply code, enhanced code (if any) and
// message returned by the relay when it rejected a command.
type SMTPError struct {
	Code         int
	EnhancedCode EnhancedCode
	Message      string
}

// NewSMTPError creates a new SMTPError.
func NewSMTPError(code int, enhCode EnhancedCode, msg string) *SMTPError {
	return &SMTPError{
		Code:         code,
		EnhancedCode: enhCode,
		Message:      msg,
	}
}

// Error returns a error string.
func (err *SMTPError) Error() string {
	s := fmt.Sprintf("SMTP error %03d", err.Code)
	if err.EnhancedCode != (EnhancedCode{}) {
		s += fmt.Sprintf(" %d.%d.%d", err.EnhancedCode[0], err.EnhancedCode[1], err.EnhancedCode[2])
	}
	if err.Message != "" {
		s += ": " + err.Message
	}
	return s
}

// Positive returns true if the status code is 2xx.
func (err *SMTPError) Positive() bool {
	return err.Code/100 == 2
}

// Temporary returns true if the status code is 4xx.
func (err *SMTPError) Temporary() bool {
	return err.Code/100 == 4
}

// Permanent returns true if the status code is 5xx.
func (err *SMTPError) Permanent() bool {
	return err.Code/100 == 5
}

// ReplyCode returns the SMTP reply code carried by err, or 0 when err was
// not caused by a relay reply.
func ReplyCode(err error) int {
	var se *SMTPError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
