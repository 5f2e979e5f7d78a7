package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SignUpsTotal       metric.Int64Counter
	TokensIssuedTotal  metric.Int64Counter
	TokensRevokedTotal metric.Int64Counter // attr: reason
	AuthFailuresTotal  metric.Int64Counter // attr: reason
	OTPIssuedTotal     metric.Int64Counter // attr: purpose
	OTPVerifiedTotal   metric.Int64Counter // attrs: purpose, outcome
	CredentialBumps    metric.Int64Counter // attr: reason
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, so call it
// after the tracer package has installed the Prometheus-backed provider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("identity-authority")
		m := &AppMetrics{}

		m.SignUpsTotal = counter(meter, "signups_total", "Accounts created through sign-up or first OAuth sign-in", "{user}")
		m.TokensIssuedTotal = counter(meter, "token_pairs_issued_total", "Access/refresh token pairs issued", "{pair}")
		m.TokensRevokedTotal = counter(meter, "tokens_revoked_total", "Token ids written to the revocation ledger", "{token}")
		m.AuthFailuresTotal = counter(meter, "auth_failures_total", "Rejected authentication attempts by reason", "{request}")
		m.OTPIssuedTotal = counter(meter, "otp_issued_total", "One-time codes issued by purpose", "{code}")
		m.OTPVerifiedTotal = counter(meter, "otp_verified_total", "One-time code verifications by purpose and outcome", "{attempt}")
		m.CredentialBumps = counter(meter, "credential_invalidations_total", "changeCredentials bumps by reason", "{bump}")

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

func counter(meter metric.Meter, name, description, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
