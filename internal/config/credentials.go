package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvUploadPassword     = "SHUTTER_UPLOAD_PASSWORD"
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
)

// Credentials are secrets kept out of config.jsonc.
type Credentials struct {
	UploadPassword     string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// LoadCredentials reads the dotenv file at path, if present. Process
// environment values take precedence over the file.
func LoadCredentials(path string) (Credentials, error) {
	values := map[string]string{}
	if strings.TrimSpace(path) != "" {
		read, err := godotenv.Read(path)
		switch {
		case err == nil:
			values = read
		case errors.Is(err, os.ErrNotExist):
		default:
			return Credentials{}, fmt.Errorf("read credentials %q: %w", path, err)
		}
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	}

	return Credentials{
		UploadPassword:     lookup(EnvUploadPassword),
		AWSAccessKeyID:     lookup(EnvAWSAccessKeyID),
		AWSSecretAccessKey: lookup(EnvAWSSecretAccessKey),
	}, nil
}
