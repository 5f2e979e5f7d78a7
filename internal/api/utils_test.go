package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinged struct {
	Name string `json:"name"`
}

func (p pinged) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"jane"}`, ""},
		{"empty", ``, "body must not be empty"},
		{"malformed", `{"name":`, "malformed JSON"},
		{"wrong type", `{"name":1}`, `field "name" must be string`},
		{"unknown field", `{"name":"jane","role":"admin"}`, `unknown field "role"`},
		{"two values", `{"name":"a"}{"name":"b"}`, "single JSON value"},
		{"validate runs", `{"name":""}`, "name is required"},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "larger than"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst pinged
			err := DecodeJSONBody(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "jane", dst.Name)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestErrorResponseCarriesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusTeapot, "nope")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"nope"}`, rec.Body.String())
}
