// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends e-mail notifications when an acquisition faults.
package alert // import "github.com/go-lpc/xpad/internal/alert"

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	mail "gopkg.in/gomail.v2"
)

// ErrCredentials is returned when the mailer is missing its SMTP setup.
var ErrCredentials = errors.New("alert: missing mail credentials")

// MaxAlerts is the default number of mails sent per subject.
const MaxAlerts = 5

// Config holds the SMTP credentials and recipients of alert mails.
type Config struct {
	Usr     string
	Pwd     string
	Server  string
	Port    int
	Targets []string
}

// FromEnv reads the mailer configuration from the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS variables.
func FromEnv() Config {
	cfg := Config{
		Usr:    os.Getenv("MAIL_USERNAME"),
		Pwd:    os.Getenv("MAIL_PASSWORD"),
		Server: os.Getenv("MAIL_SERVER"),
		Port:   atoi(os.Getenv("MAIL_PORT")),
	}
	for _, tgt := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		cfg.Targets = append(cfg.Targets, tgt)
	}
	return cfg
}

func (cfg Config) valid() bool {
	return cfg.Usr != "" && cfg.Pwd != "" &&
		cfg.Server != "" && cfg.Port != 0 &&
		len(cfg.Targets) > 0
}

// Mailer sends alert mails, at most Max per subject.
type Mailer struct {
	cfg  Config
	msg  *log.Logger
	name string // name of the sending program

	Max int

	mu     sync.Mutex
	alerts map[string]int // number of alerts per subject

	send func(msg ...*mail.Message) error
}

// New returns a mailer sending alerts on behalf of the named program.
func New(name string, cfg Config, msg *log.Logger) *Mailer {
	if msg == nil {
		msg = log.New(os.Stdout, "alert: ", 0)
	}
	m := &Mailer{
		cfg:    cfg,
		msg:    msg,
		name:   name,
		Max:    MaxAlerts,
		alerts: make(map[string]int),
	}
	m.send = m.dialAndSend
	return m
}

// Alert sends a mail with the provided subject and body.
// Alerts beyond the Max-th one for a given subject are only logged.
func (m *Mailer) Alert(subject, body string) error {
	m.msg.Printf("%s: %s", subject, body)

	m.mu.Lock()
	m.alerts[subject]++
	n := m.alerts[subject]
	m.mu.Unlock()

	if n > m.Max {
		return nil
	}

	if !m.cfg.valid() {
		return ErrCredentials
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.Usr)
	msg.SetHeader("Bcc", m.cfg.Targets...)
	msg.SetHeader("Subject", fmt.Sprintf("[%s] %s", m.name, subject))
	msg.SetBody("text/plain", body)

	err := m.send(msg)
	if err != nil {
		return fmt.Errorf("alert: could not send mail: %w", err)
	}
	return nil
}

func (m *Mailer) dialAndSend(msg ...*mail.Message) error {
	dial := mail.NewDialer(m.cfg.Server, m.cfg.Port, m.cfg.Usr, m.cfg.Pwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	return dial.DialAndSend(msg...)
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
