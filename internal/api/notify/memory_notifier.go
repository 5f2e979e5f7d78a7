package notify

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryNotifier keeps the latest code per (event, recipient) in an expiring
// cache. It backs local development mailboxes and tests.
type MemoryNotifier struct {
	mailbox *cache.Cache
}

// NewMemoryNotifier keeps codes for ttl, which should match the OTP lifetime.
func NewMemoryNotifier(ttl time.Duration) *MemoryNotifier {
	return &MemoryNotifier{mailbox: cache.New(ttl, 2*ttl)}
}

func mailboxKey(event, to string) string {
	return event + "|" + strings.ToLower(to)
}

func (n *MemoryNotifier) store(event, to, code string) error {
	n.mailbox.Set(mailboxKey(event, to), code, cache.DefaultExpiration)
	return nil
}

// LastCode returns the most recent unexpired code sent for event to the recipient.
// Events are named after challenge purposes, e.g. "confirm-email".
func (n *MemoryNotifier) LastCode(event, to string) (string, bool) {
	v, ok := n.mailbox.Get(mailboxKey(event, to))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (n *MemoryNotifier) SendConfirmEmail(_ context.Context, to, code string) error {
	return n.store("confirm-email", to, code)
}

func (n *MemoryNotifier) SendPasswordReset(_ context.Context, to, code string) error {
	return n.store("reset-password", to, code)
}

func (n *MemoryNotifier) SendEmailChange(_ context.Context, to, code string) error {
	return n.store("change-email", to, code)
}

func (n *MemoryNotifier) SendTwoFactorSetup(_ context.Context, to, code string) error {
	return n.store("2fa-setup", to, code)
}

func (n *MemoryNotifier) SendTwoFactorLogin(_ context.Context, to, code string) error {
	return n.store("2fa-login", to, code)
}
