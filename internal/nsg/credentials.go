// Package nsg talks to the NSG job service (CIPRES REST) on behalf of a
// signed-in user.
package nsg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nsg-job-manager/internal/filestore"
)

const DefaultBaseURL = "https://nsgr.sdsc.edu:8443/cipresrest/v1"

var ErrNoCredentials = errors.New("no saved credentials")

type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	AppKey   string `yaml:"app_key" json:"app_key"`
	BaseURL  string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(c.AppKey) == "" {
		missing = append(missing, "app key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) baseURL() string {
	if u := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); u != "" {
		return u
	}
	return DefaultBaseURL
}

// CredentialsLocation honors NSG_CREDENTIALS, else ~/.nsg/credentials.yaml.
func CredentialsLocation() (string, error) {
	if override := strings.TrimSpace(os.Getenv("NSG_CREDENTIALS")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".nsg", "credentials.yaml"), nil
}

// LoadCredentials returns ErrNoCredentials when the file does not exist.
func LoadCredentials(path string) (Credentials, error) {
	var c Credentials
	if err := filestore.ReadYAML(path, &c); err != nil {
		if filestore.IsNotExist(err) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, err
	}
	return c, nil
}

func SaveCredentials(path string, c Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return filestore.WriteYAMLPrivate(path, c)
}
