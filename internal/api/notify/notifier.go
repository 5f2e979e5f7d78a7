package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Notifier delivers one-time codes out of band. Every method receives the
// plaintext code; implementations must never persist it beyond delivery.
type Notifier interface {
	SendConfirmEmail(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, code string) error
	SendEmailChange(ctx context.Context, to, code string) error
	SendTwoFactorSetup(ctx context.Context, to, code string) error
	SendTwoFactorLogin(ctx context.Context, to, code string) error
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*MemoryNotifier)(nil)
	_ Notifier = MultiNotifier(nil)
)

// LogNotifier writes codes to the log. Development only.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

func (n *LogNotifier) send(ctx context.Context, event, to, code string) error {
	n.logger.InfoContext(ctx, "Delivering verification code",
		slog.String("event", event),
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}

func (n *LogNotifier) SendConfirmEmail(ctx context.Context, to, code string) error {
	return n.send(ctx, "confirm-email", to, code)
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, to, code string) error {
	return n.send(ctx, "reset-password", to, code)
}

func (n *LogNotifier) SendEmailChange(ctx context.Context, to, code string) error {
	return n.send(ctx, "change-email", to, code)
}

func (n *LogNotifier) SendTwoFactorSetup(ctx context.Context, to, code string) error {
	return n.send(ctx, "2fa-setup", to, code)
}

func (n *LogNotifier) SendTwoFactorLogin(ctx context.Context, to, code string) error {
	return n.send(ctx, "2fa-login", to, code)
}

// MultiNotifier fans a notification out to every member concurrently and
// reports the first failure.
type MultiNotifier []Notifier

func (m MultiNotifier) each(ctx context.Context, send func(context.Context, Notifier) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range m {
		g.Go(func() error {
			if err := send(gctx, n); err != nil {
				return fmt.Errorf("%T: %w", n, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (m MultiNotifier) SendConfirmEmail(ctx context.Context, to, code string) error {
	return m.each(ctx, func(ctx context.Context, n Notifier) error { return n.SendConfirmEmail(ctx, to, code) })
}

func (m MultiNotifier) SendPasswordReset(ctx context.Context, to, code string) error {
	return m.each(ctx, func(ctx context.Context, n Notifier) error { return n.SendPasswordReset(ctx, to, code) })
}

func (m MultiNotifier) SendEmailChange(ctx context.Context, to, code string) error {
	return m.each(ctx, func(ctx context.Context, n Notifier) error { return n.SendEmailChange(ctx, to, code) })
}

func (m MultiNotifier) SendTwoFactorSetup(ctx context.Context, to, code string) error {
	return m.each(ctx, func(ctx context.Context, n Notifier) error { return n.SendTwoFactorSetup(ctx, to, code) })
}

func (m MultiNotifier) SendTwoFactorLogin(ctx context.Context, to, code string) error {
	return m.each(ctx, func(ctx context.Context, n Notifier) error { return n.SendTwoFactorLogin(ctx, to, code) })
}
