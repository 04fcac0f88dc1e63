package mastermind

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credentials is the content of the credentials file.
type Credentials struct {
	Token string `yaml:"token"`
}

// DefaultCredentialsPath returns ~/mastermind.yaml.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mastermind.yaml"
	}
	return filepath.Join(home, "mastermind.yaml")
}

// LoadCredentials reads the API token from a YAML file of the form
// "token: <value>".
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if creds.Token == "" {
		return Credentials{}, errors.New("credentials " + path + ": token is empty")
	}
	return creds, nil
}
