// Package notify sends optional email alerts about crawl and fight
// milestones.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Notifier emails milestone messages. The zero value (no host
// configured) silently drops everything, so callers never have to
// check whether notifications are set up.
type Notifier struct {
	cfg Config
}

func New(cfg Config) Notifier {
	return Notifier{cfg: cfg}
}

func (n Notifier) Enabled() bool {
	return n.cfg.Host != "" && n.cfg.To != ""
}

func (n Notifier) Send(subject, body string) {
	if !n.Enabled() {
		return
	}
	msg := email.NewEmail()
	msg.From = n.cfg.From
	msg.To = []string{n.cfg.To}
	msg.Subject = subject
	msg.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	err := msg.Send(addr, auth)
	if err != nil {
		slog.Warn("notification email failed", "subject", subject, "err", err)
	}
}

// CrawlDone reports a finished crawl.
func (n Notifier) CrawlDone(server string, characters int) {
	n.Send(
		fmt.Sprintf("crawl of %s finished", server),
		fmt.Sprintf("Crawled %d characters on %s.", characters, server),
	)
}

// FightWon reports new scrapbook items from a won fight.
func (n Notifier) FightWon(target string, newItems int) {
	n.Send(
		fmt.Sprintf("won against %s", target),
		fmt.Sprintf("Beat %s and filled %d new scrapbook entries.", target, newItems),
	)
}
