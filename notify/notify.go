//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package notify delivers workflow notifications by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/phuocNg964/ProMeet-AI/log"
)

// Default SMTP endpoint.
const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 587
)

var (
	// ErrEmptyBody is returned for a notification without content.
	ErrEmptyBody = errors.New("notify: empty body")
	// ErrNoRecipient is returned for a notification without an address.
	ErrNoRecipient = errors.New("notify: no recipient")
)

// Notification is one message to one recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers a notification. A nil error means delivered.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP sends plain text mail through an SMTP relay. Without credentials it
// runs in preview mode: messages are logged and reported as delivered.
type SMTP struct {
	host     string
	port     int
	sender   string
	password string
	send     SendFunc
}

// Option configures SMTP.
type Option func(*SMTP)

// WithServer sets the relay host and port.
func WithServer(host string, port int) Option {
	return func(s *SMTP) {
		if host != "" {
			s.host = host
		}
		if port > 0 {
			s.port = port
		}
	}
}

// WithCredentials sets the sender address and password.
func WithCredentials(sender, password string) Option {
	return func(s *SMTP) {
		s.sender = sender
		s.password = password
	}
}

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(s *SMTP) { s.send = fn }
}

// NewSMTP creates an SMTP notifier.
func NewSMTP(opts ...Option) *SMTP {
	s := &SMTP{host: DefaultSMTPHost, port: DefaultSMTPPort, send: smtp.SendMail}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preview reports whether credentials are missing.
func (s *SMTP) Preview() bool {
	return s.sender == "" || s.password == ""
}

// Notify implements Notifier.
func (s *SMTP) Notify(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.Body) == "" {
		return ErrEmptyBody
	}
	if s.Preview() {
		log.Infof("preview mode, would send %q to %s", n.Subject, n.To)
		return nil
	}
	if n.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	auth := smtp.PlainAuth("", s.sender, s.password, s.host)
	if err := s.send(addr, auth, s.sender, []string{n.To}, s.compose(n)); err != nil {
		return fmt.Errorf("send mail to %s: %w", n.To, err)
	}
	log.Infof("sent %q to %s", n.Subject, n.To)
	return nil
}

func (s *SMTP) compose(n Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.sender)
	fmt.Fprintf(&b, "To: %s\r\n", n.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
