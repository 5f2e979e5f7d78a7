package oauth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-identity-authority/config"
	"github.com/FACorreiaa/go-identity-authority/internal/api"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type stubResponse struct {
	status int
	body   string
}

// stubGoogle answers tokeninfo and userinfo calls and records every URL hit.
func stubGoogle(tokenInfo, userInfo stubResponse, seen *[]string) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if seen != nil {
			*seen = append(*seen, r.URL.String())
		}
		res := userInfo
		if strings.HasPrefix(r.URL.String(), TokenInfoURL) {
			res = tokenInfo
		}
		return &http.Response{
			StatusCode: res.status,
			Body:       io.NopCloser(strings.NewReader(res.body)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Request:    r,
		}, nil
	})}
}

var ownToken = stubResponse{http.StatusOK, `{"aud":"client","azp":"client","sub":"1234","expires_in":"3599"}`}

func TestGoogleVerifier(t *testing.T) {
	cfg := config.GoogleConfig{ClientKey: "client", Secret: "secret", CallbackURL: "http://localhost/cb"}

	t.Run("verified account", func(t *testing.T) {
		var seen []string
		body := `{"id":"1234","email":"Jane.Doe@Gmail.com","verified_email":true,"name":"Jane Doe","picture":"https://img/jane.png"}`
		v := NewGoogleVerifier(cfg, stubGoogle(ownToken, stubResponse{http.StatusOK, body}, &seen), slog.Default())

		id, err := v.Verify(context.Background(), "ya29.token")
		require.NoError(t, err)
		assert.Equal(t, "jane.doe@gmail.com", id.Email)
		assert.True(t, id.EmailVerified)
		assert.Equal(t, "1234", id.ProviderUserID)
		assert.Equal(t, "Jane Doe", id.Name)
		require.Len(t, seen, 2)
		assert.True(t, strings.HasPrefix(seen[0], TokenInfoURL), "audience is checked before the profile is read")
		assert.Contains(t, seen[1], "ya29.token")
	})

	t.Run("unverified account", func(t *testing.T) {
		body := `{"id":"1234","email":"jane@gmail.com","verified_email":false}`
		v := NewGoogleVerifier(cfg, stubGoogle(ownToken, stubResponse{http.StatusOK, body}, nil), slog.Default())

		id, err := v.Verify(context.Background(), "ya29.token")
		require.NoError(t, err)
		assert.False(t, id.EmailVerified)
	})

	t.Run("token issued to another client", func(t *testing.T) {
		var seen []string
		foreign := stubResponse{http.StatusOK, `{"aud":"someone-else","azp":"someone-else","sub":"1234"}`}
		body := `{"id":"1234","email":"jane@gmail.com","verified_email":true}`
		v := NewGoogleVerifier(cfg, stubGoogle(foreign, stubResponse{http.StatusOK, body}, &seen), slog.Default())

		_, err := v.Verify(context.Background(), "ya29.foreign")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
		assert.ErrorIs(t, err, ErrForeignAudience)
		assert.Len(t, seen, 1, "profile is never fetched")
	})

	t.Run("authorized party mismatch", func(t *testing.T) {
		mixed := stubResponse{http.StatusOK, `{"aud":"client","azp":"someone-else"}`}
		v := NewGoogleVerifier(cfg, stubGoogle(mixed, stubResponse{http.StatusOK, `{}`}, nil), slog.Default())

		_, err := v.Verify(context.Background(), "ya29.token")
		assert.ErrorIs(t, err, ErrForeignAudience)
	})

	t.Run("no audience reported", func(t *testing.T) {
		v := NewGoogleVerifier(cfg, stubGoogle(stubResponse{http.StatusOK, `{"sub":"1234"}`}, stubResponse{http.StatusOK, `{}`}, nil), slog.Default())

		_, err := v.Verify(context.Background(), "ya29.token")
		assert.ErrorIs(t, err, ErrForeignAudience)
	})

	t.Run("introspection rejects token", func(t *testing.T) {
		bad := stubResponse{http.StatusBadRequest, `{"error":"invalid_token","error_description":"Invalid Value"}`}
		v := NewGoogleVerifier(cfg, stubGoogle(bad, stubResponse{http.StatusOK, `{}`}, nil), slog.Default())

		_, err := v.Verify(context.Background(), "expired")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
		assert.NotErrorIs(t, err, ErrForeignAudience)
	})

	t.Run("provider rejects profile read", func(t *testing.T) {
		v := NewGoogleVerifier(cfg, stubGoogle(ownToken, stubResponse{http.StatusUnauthorized, `{"error":"invalid_token"}`}, nil), slog.Default())

		_, err := v.Verify(context.Background(), "revoked")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
	})

	t.Run("empty token", func(t *testing.T) {
		var seen []string
		v := NewGoogleVerifier(cfg, stubGoogle(ownToken, stubResponse{http.StatusOK, `{}`}, &seen), slog.Default())

		_, err := v.Verify(context.Background(), "")
		assert.ErrorIs(t, err, api.ErrInvalidCredential)
		assert.Empty(t, seen)
	})
}

func TestVerifiedClaimNames(t *testing.T) {
	assert.True(t, identityFrom(goth.User{Email: "a@b.c", RawData: map[string]interface{}{"email_verified": "true"}}).EmailVerified)
	assert.False(t, identityFrom(goth.User{Email: "a@b.c", RawData: map[string]interface{}{}}).EmailVerified)
}
