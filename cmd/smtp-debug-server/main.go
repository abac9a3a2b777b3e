// Command smtp-debug-server runs a local relay that prints every accepted
// message. Point GMAIL_SMTP_SERVER and GMAIL_SMTP_PORT at it to try
// send_email without a real mailbox.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/uponusolutions/template-email-sender/logging"
	"github.com/uponusolutions/template-email-sender/tester"
)

var (
	addr     = "127.0.0.1:1025"
	user     = ""
	password = ""
	noTLS    = false
	debug    = false
)

func init() {
	flag.StringVar(&addr, "l", addr, "Listen address")
	flag.StringVar(&user, "user", user, "Accepted AUTH PLAIN login, empty accepts mail without auth")
	flag.StringVar(&password, "password", password, "Accepted AUTH PLAIN password")
	flag.BoolVar(&noTLS, "no-tls", noTLS, "Do not offer STARTTLS")
	flag.BoolVar(&debug, "debug", debug, "Print the SMTP exchange")
}

func main() {
	flag.Parse()

	logger := logging.New(os.Stderr, slog.LevelInfo)

	opts := []tester.Option{
		tester.WithAddr(addr),
		tester.WithLogger(logger),
		tester.WithOnMail(func(m tester.Mail) {
			fmt.Printf("--- from %s to %v (auth %q, tls %t)\n%s\n", m.From, m.Rcpts, m.Authenticated, m.TLS, m.Data)
		}),
	}
	if user != "" {
		opts = append(opts, tester.WithCredentials(user, password))
	}
	if noTLS {
		opts = append(opts, tester.WithoutTLS())
	}
	if debug {
		opts = append(opts, tester.WithDebug(os.Stdout))
	}

	s, err := tester.New(opts...)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Starting SMTP server at", addr)
	if err := s.Serve(ctx); err != nil {
		log.Fatal(err)
	}
}
