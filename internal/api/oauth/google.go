package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/google"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
)

// Identity is what an external provider vouches for about its user.
type Identity struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
}

// IdentityVerifier exchanges a client-held provider access token for an identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (*Identity, error)
}

var _ IdentityVerifier = (*GoogleVerifier)(nil)

// TokenInfoURL is Google's introspection endpoint for access tokens.
var TokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// ErrForeignAudience marks a token Google issued to some other OAuth client.
var ErrForeignAudience = errors.New("token was issued to another client")

type GoogleVerifier struct {
	provider *google.Provider
	client   *http.Client
	clientID string
	logger   *slog.Logger
}

func NewGoogleVerifier(cfg config.GoogleConfig, client *http.Client, logger *slog.Logger) *GoogleVerifier {
	p := google.New(cfg.ClientKey, cfg.Secret, cfg.CallbackURL, "email", "profile")
	if client != nil {
		p.HTTPClient = client
	} else {
		client = http.DefaultClient
	}
	return &GoogleVerifier{provider: p, client: client, clientID: cfg.ClientKey, logger: logger}
}

// Verify accepts an access token only when Google reports it was issued to
// this client, then loads the profile it grants access to.
func (g *GoogleVerifier) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	ctx, span := otel.Tracer("GoogleVerifier").Start(ctx, "Verify")
	defer span.End()

	if accessToken == "" {
		span.SetStatus(codes.Error, "empty token")
		return nil, fmt.Errorf("%w: empty google token", api.ErrInvalidCredential)
	}

	if err := g.checkAudience(ctx, accessToken); err != nil {
		g.logger.WarnContext(ctx, "Google token failed introspection", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "introspection failed")
		return nil, fmt.Errorf("%w: %w", api.ErrInvalidCredential, err)
	}

	u, err := g.provider.FetchUser(&google.Session{AccessToken: accessToken})
	if err != nil {
		g.logger.WarnContext(ctx, "Google rejected access token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch user failed")
		return nil, fmt.Errorf("%w: google token rejected", api.ErrInvalidCredential)
	}

	id := identityFrom(u)
	if id.Email == "" {
		span.SetStatus(codes.Error, "no email")
		return nil, fmt.Errorf("%w: google account has no email", api.ErrInvalidCredential)
	}

	span.SetStatus(codes.Ok, "")
	return id, nil
}

type tokenInfo struct {
	Audience        string `json:"aud"`
	AuthorizedParty string `json:"azp"`
	Error           string `json:"error_description"`
}

func (g *GoogleVerifier) checkAudience(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		TokenInfoURL+"?access_token="+url.QueryEscape(accessToken), nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("tokeninfo request: %w", err)
	}
	defer resp.Body.Close()

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("tokeninfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tokeninfo status %d: %s", resp.StatusCode, info.Error)
	}

	if info.Audience == "" && info.AuthorizedParty == "" {
		return ErrForeignAudience
	}
	for _, aud := range []string{info.Audience, info.AuthorizedParty} {
		if aud != "" && aud != g.clientID {
			return fmt.Errorf("%w: %s", ErrForeignAudience, aud)
		}
	}
	return nil
}

func identityFrom(u goth.User) *Identity {
	return &Identity{
		ProviderUserID: u.UserID,
		Email:          strings.ToLower(strings.TrimSpace(u.Email)),
		EmailVerified:  verified(u.RawData),
		Name:           u.Name,
		Picture:        u.AvatarURL,
	}
}

// verified accepts both the v2 userinfo key and the OIDC claim name.
func verified(raw map[string]interface{}) bool {
	for _, k := range []string{"verified_email", "email_verified"} {
		switch v := raw[k].(type) {
		case bool:
			return v
		case string:
			return strings.EqualFold(v, "true")
		}
	}
	return false
}

// ErrUnverifiedEmail is returned by callers that require a verified provider address.
var ErrUnverifiedEmail = errors.New("provider email is not verified")
