package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// AWSProvider adapts an aws-sdk-go-v2 credentials provider. The identity id is
// fixed because SDK providers have no notion of an identity pool.
type AWSProvider struct {
	Provider      aws.CredentialsProvider
	IdentityID    string
	Authenticated bool
}

// Credentials retrieves credentials from the wrapped SDK provider.
func (p *AWSProvider) Credentials(ctx context.Context) (Credentials, error) {
	ac, err := p.Provider.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("retrieving aws credentials: %w", err)
	}

	creds := Credentials{
		AccessKeyID:     ac.AccessKeyID,
		SecretAccessKey: ac.SecretAccessKey,
		SessionToken:    ac.SessionToken,
		IdentityID:      p.IdentityID,
		Authenticated:   p.Authenticated,
	}
	if ac.CanExpire {
		creds.Expiration = ac.Expires
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// ErrNoEnvCredentials is returned when the AWS_* variables are not set.
var ErrNoEnvCredentials = errors.New("auth: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are not set")

// NewEnvProvider reads AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
// AWS_SESSION_TOKEN. Each read is treated as valid for ttl, after which the
// environment is read again; a ttl <= 0 never expires.
func NewEnvProvider(identityID string, ttl time.Duration) *AWSProvider {
	read := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if key == "" || secret == "" {
			return aws.Credentials{}, ErrNoEnvCredentials
		}
		ac := aws.Credentials{
			AccessKeyID:     key,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}
		if ttl > 0 {
			ac.CanExpire = true
			ac.Expires = time.Now().Add(ttl)
		}
		return ac, nil
	})

	return &AWSProvider{
		Provider:   aws.NewCredentialsCache(read),
		IdentityID: identityID,
	}
}
