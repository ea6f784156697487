// VigIA - Marketplace Price Monitoring and Alerting
// Copyright 2026 VigIA contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vigia-app/vigia

// Package notify delivers alert notifications to users. Email over SMTP
// is the only channel.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/vigia-app/vigia/internal/config"
	"github.com/vigia-app/vigia/internal/logging"
	"github.com/vigia-app/vigia/internal/metrics"
	"github.com/vigia-app/vigia/internal/models"
)

// Notifier sends a price alert to a user. Implementations must be safe
// for concurrent use; the monitor calls Send from its worker pool.
type Notifier interface {
	SendPriceAlert(ctx context.Context, a PriceAlert) error
}

// PriceAlert carries everything the notification template needs.
type PriceAlert struct {
	Email        string
	Name         string
	Product      models.Product
	CurrentPrice float64
	TargetPrice  float64
}

// EmailNotifier delivers price alerts via SMTP.
type EmailNotifier struct {
	cfg         config.SMTPConfig
	dialTimeout time.Duration
}

// NewEmailNotifier creates an SMTP-backed notifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{
		cfg:         cfg,
		dialTimeout: 30 * time.Second,
	}
}

// SendPriceAlert emails the user that a product reached its target price.
func (n *EmailNotifier) SendPriceAlert(ctx context.Context, a PriceAlert) error {
	subject := fmt.Sprintf("[VigIA] Alerta de preço: %s", a.Product.Name)
	msg := n.buildMessage(a.Email, subject, a)

	if err := n.sendSMTP(ctx, a.Email, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		logging.Error().
			Err(err).
			Str("recipient", a.Email).
			Int64("product_id", a.Product.ID).
			Msg("Failed to send price alert email")
		return err
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	logging.Info().
		Str("recipient", a.Email).
		Int64("product_id", a.Product.ID).
		Float64("current_price", a.CurrentPrice).
		Float64("target_price", a.TargetPrice).
		Msg("Price alert email sent")
	return nil
}

// buildMessage constructs a multipart/alternative message with both a
// plain text and an HTML body.
func (n *EmailNotifier) buildMessage(to, subject string, a PriceAlert) string {
	var msg strings.Builder

	fromName := n.cfg.FromName
	if fromName == "" {
		fromName = "VigIA"
	}

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, n.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(n.textBody(a))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(n.htmlBody(a))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

func (n *EmailNotifier) textBody(a PriceAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s,\r\n\r\n", a.Name)
	fmt.Fprintf(&b, "O produto %q atingiu o preço alvo do seu alerta.\r\n\r\n", a.Product.Name)
	fmt.Fprintf(&b, "Preço atual: R$ %.2f\r\n", a.CurrentPrice)
	fmt.Fprintf(&b, "Preço alvo:  R$ %.2f\r\n", a.TargetPrice)
	if a.Product.URL != "" {
		fmt.Fprintf(&b, "\r\nVer anúncio: %s\r\n", a.Product.URL)
	}
	b.WriteString("\r\n-- VigIA\r\n")
	return b.String()
}

func (n *EmailNotifier) htmlBody(a PriceAlert) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Olá %s,</p>", html.EscapeString(a.Name))
	fmt.Fprintf(&b, "<p>O produto <strong>%s</strong> atingiu o preço alvo do seu alerta.</p>",
		html.EscapeString(a.Product.Name))
	fmt.Fprintf(&b, "<p>Preço atual: <strong>R$ %.2f</strong><br>Preço alvo: R$ %.2f</p>",
		a.CurrentPrice, a.TargetPrice)
	if a.Product.URL != "" {
		fmt.Fprintf(&b, `<p><a href="%s">Ver anúncio</a></p>`, html.EscapeString(a.Product.URL))
	}
	b.WriteString("<p>-- VigIA</p></body></html>")
	return b.String()
}

// sendSMTP performs one SMTP conversation: dial with timeout, optional
// STARTTLS, optional AUTH PLAIN, then MAIL/RCPT/DATA.
func (n *EmailNotifier) sendSMTP(ctx context.Context, to, msg string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	dialer := &net.Dialer{Timeout: n.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if n.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: n.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if n.cfg.Username != "" && n.cfg.Password != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once DATA closes; a failed QUIT is noise.
	if err := client.Quit(); err != nil {
		return nil
	}
	return nil
}
