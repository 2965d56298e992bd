// Package secrets resolves database credentials from a secret source at
// startup, so credentials never live in config files or logs.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
)

// Credentials are the resolved database login fields. The JSON shape matches
// the conventional managed-secret layout for database credentials.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Resolver fetches credentials by secret ID.
type Resolver interface {
	// Resolve returns the credentials for secretID, or an error with kind
	// SecretUnavailable when the secret cannot be fetched or parsed.
	Resolve(ctx context.Context, secretID string) (*Credentials, error)
}

// EnvResolver reads a secret from an environment variable whose name is the
// secret ID and whose value is the credentials JSON.
type EnvResolver struct{}

// NewEnvResolver creates an EnvResolver.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

func (r *EnvResolver) Resolve(_ context.Context, secretID string) (*Credentials, error) {
	raw, ok := os.LookupEnv(secretID)
	if !ok || raw == "" {
		return nil, apperrors.New(apperrors.KindSecretUnavailable,
			fmt.Sprintf("secret %s is not set", secretID), false, nil)
	}
	return parseCredentials(secretID, []byte(raw))
}

// FileResolver reads a secret from a JSON file, the layout mounted-secret
// volumes use. The secret ID is the file path.
type FileResolver struct{}

// NewFileResolver creates a FileResolver.
func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

func (r *FileResolver) Resolve(_ context.Context, secretID string) (*Credentials, error) {
	raw, err := os.ReadFile(secretID)
	if err != nil {
		return nil, apperrors.New(apperrors.KindSecretUnavailable,
			fmt.Sprintf("secret %s could not be read", secretID), true, err)
	}
	return parseCredentials(secretID, raw)
}

// StaticResolver serves fixed credentials, for tests and local development.
type StaticResolver struct {
	Credentials Credentials
}

func (r *StaticResolver) Resolve(context.Context, string) (*Credentials, error) {
	creds := r.Credentials
	return &creds, nil
}

func parseCredentials(secretID string, raw []byte) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, apperrors.New(apperrors.KindSecretUnavailable,
			fmt.Sprintf("secret %s is not valid credentials JSON", secretID), false, err)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, apperrors.New(apperrors.KindSecretUnavailable,
			fmt.Sprintf("secret %s is missing username or password", secretID), false, nil)
	}
	return &creds, nil
}
