package auth

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileProvider reads credentials from a YAML document on every call, so an
// external process can rotate the file while the server keeps running.
//
//	accessKeyId: ASIA...
//	secretAccessKey: ...
//	sessionToken: ...
//	identityId: us-west-2:1234
//	authenticated: true
//	expiration: 2026-10-19T13:00:00Z
type FileProvider struct {
	Path string
}

// NewFileProvider creates a provider for the YAML file at path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Credentials loads and validates the credentials file.
func (p *FileProvider) Credentials(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing credentials file %s: %w", p.Path, err)
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("credentials file %s: %w", p.Path, err)
	}
	return creds, nil
}
