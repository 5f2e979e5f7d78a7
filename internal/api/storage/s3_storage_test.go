package storage

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-identity-authority/config"
)

func testS3Config() config.S3Config {
	return config.S3Config{
		Region:     "eu-central-1",
		Bucket:     "identity-uploads",
		Endpoint:   "http://127.0.0.1:9000",
		AccessKey:  "minio",
		SecretKey:  "minio-secret",
		AppName:    "identity-authority",
		PresignTTL: time.Hour,
	}
}

func TestNewS3StorageAppliesOptions(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return orig(ctx, optFns...)
	}

	_, err := NewS3Storage(context.Background(), testS3Config(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", lo.Region)
	require.NotNil(t, lo.Credentials)

	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minio", creds.AccessKeyID)
}

func TestProfileImageKey(t *testing.T) {
	s, err := NewS3Storage(context.Background(), testS3Config(), slog.Default())
	require.NoError(t, err)
	userID := uuid.New()

	key := s.ProfileImageKey(userID, "../my avatar.png")
	prefix := "identity-authority/users/" + userID.String() + "/"
	require.True(t, strings.HasPrefix(key, prefix), key)
	assert.True(t, strings.HasSuffix(key, "_my_avatar.png"), key)
	assert.NotEqual(t, key, s.ProfileImageKey(userID, "../my avatar.png"))
}

func TestPresignUpload(t *testing.T) {
	s, err := NewS3Storage(context.Background(), testS3Config(), slog.Default())
	require.NoError(t, err)

	up, err := s.PresignUpload(context.Background(), "identity-authority/users/u/k_avatar.png", "image/png")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, up.Method)
	assert.True(t, strings.HasPrefix(up.URL, "http://127.0.0.1:9000/identity-uploads/identity-authority/users/u/k_avatar.png?"), up.URL)
	assert.Contains(t, up.URL, "X-Amz-Signature=")
	assert.Contains(t, up.URL, "X-Amz-Expires=3600")
}
