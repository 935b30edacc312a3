package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string `mapstructure:"PORT"`
	Stage            string `mapstructure:"STAGE"`
	AWSRegion        string `mapstructure:"AWS_REGION"`
	DynamoEndpoint   string `mapstructure:"DYNAMODB_ENDPOINT"`
	TableName        string `mapstructure:"TABLE_NAME"`
	LocalDBPath      string `mapstructure:"LOCAL_DB_PATH"`
	AccessSecret     string `mapstructure:"ACCESS_SECRET"`
	RefreshSecret    string `mapstructure:"REFRESH_SECRET"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	SendGridAPIKey   string `mapstructure:"SENDGRID_API_KEY"`
	SenderEmail      string `mapstructure:"SENDER_EMAIL"`
	FrontendURL      string `mapstructure:"FRONTEND_URL"`
	VideoBucket      string `mapstructure:"VIDEO_BUCKET"`
	ThumbnailBucket  string `mapstructure:"THUMBNAIL_BUCKET"`
	UploadURLTTLMins int    `mapstructure:"UPLOAD_URL_TTL_MINUTES"`
	AllowedOrigins   string `mapstructure:"ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"PORT":                   ":8080",
	"STAGE":                  "local",
	"AWS_REGION":             "us-east-1",
	"DYNAMODB_ENDPOINT":      "",
	"TABLE_NAME":             "learnplatform",
	"LOCAL_DB_PATH":          "",
	"ACCESS_SECRET":          "",
	"REFRESH_SECRET":         "",
	"REDIS_ADDR":             "",
	"SENDGRID_API_KEY":       "",
	"SENDER_EMAIL":           "noreply@learnplatform.dev",
	"FRONTEND_URL":           "http://localhost:3000",
	"VIDEO_BUCKET":           "learnplatform-videos",
	"THUMBNAIL_BUCKET":       "learnplatform-thumbnails",
	"UPLOAD_URL_TTL_MINUTES": 15,
	"ALLOWED_ORIGINS":        "*",
}

// LoadConfig reads app.env from path when present. Environment variables
// always win over the file.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()

	// Bound explicitly so Unmarshal sees them without a file.
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	err = v.Unmarshal(&config)
	return
}

// IsLocal reports whether the process runs on the embedded store.
func (c Config) IsLocal() bool {
	return c.Stage == "local"
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
