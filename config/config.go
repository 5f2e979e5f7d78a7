package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// JWTSecrets holds one signing secret per (token kind, role) pair.
type JWTSecrets struct {
	AccessUser   string `mapstructure:"accessUser"`
	AccessAdmin  string `mapstructure:"accessAdmin"`
	RefreshUser  string `mapstructure:"refreshUser"`
	RefreshAdmin string `mapstructure:"refreshAdmin"`
}

// JWTPrefixes maps a role to the Authorization header prefix its tokens travel with.
type JWTPrefixes struct {
	User  string `mapstructure:"user"`
	Admin string `mapstructure:"admin"`
}

type JWTConfig struct {
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
	Secrets         JWTSecrets    `mapstructure:"secrets"`
	Prefixes        JWTPrefixes   `mapstructure:"prefixes"`
}

type OTPConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type GoogleConfig struct {
	ClientKey   string `mapstructure:"clientKey"`
	Secret      string `mapstructure:"secret"`
	CallbackURL string `mapstructure:"callbackURL"`
}

type S3Config struct {
	Region     string        `mapstructure:"region"`
	Bucket     string        `mapstructure:"bucket"`
	Endpoint   string        `mapstructure:"endpoint"`
	AccessKey  string        `mapstructure:"accessKey"`
	SecretKey  string        `mapstructure:"secretKey"`
	AppName    string        `mapstructure:"appName"`
	PresignTTL time.Duration `mapstructure:"presignTTL"`
}

type Config struct {
	Mode         string `mapstructure:"mode"`
	Dotenv       string `mapstructure:"dotenv"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	JWT      JWTConfig `mapstructure:"jwt"`
	OTP      OTPConfig `mapstructure:"otp"`
	Security struct {
		BcryptCost int `mapstructure:"bcryptCost"`
	} `mapstructure:"security"`
	Google  GoogleConfig `mapstructure:"google"`
	Storage struct {
		S3 S3Config `mapstructure:"s3"`
	} `mapstructure:"storage"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsPort string `mapstructure:"metricsPort"`
	} `mapstructure:"observability"`
	Revocation struct {
		PurgeInterval time.Duration `mapstructure:"purgeInterval"`
	} `mapstructure:"revocation"`
	CORS struct {
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"cors"`
}

// InitConfig loads config.yml from the usual locations, falling back to the
// embedded copy. Every key can be overridden from the environment, e.g.
// JWT_SECRETS_ACCESSUSER or REPOSITORIES_POSTGRES_PASSWORD.
func InitConfig() (Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	return unmarshal(v)
}

// Load parses configuration from an arbitrary yml document. Environment
// overrides still apply.
func Load(raw []byte) (Config, error) {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.OTP.TTL <= 0 {
		config.OTP.TTL = 10 * time.Minute
	}
	if config.Security.BcryptCost == 0 {
		config.Security.BcryptCost = 10
	}
	return config, nil
}
