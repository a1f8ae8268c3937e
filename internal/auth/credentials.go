// Package auth defines the credential collaborator consumed by the request
// signer: an immutable Credentials snapshot, the Provider that hands out fresh
// snapshots, and the Hub that announces sign-outs.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// CredentialsSource is recorded on the aws.Credentials handed to the signer.
const CredentialsSource = "plat-geofence"

// ErrIncompleteCredentials is returned for credentials without a key pair.
var ErrIncompleteCredentials = errors.New("auth: credentials need an access key id and a secret access key")

// Credentials is a snapshot issued by the identity provider. A snapshot is
// never modified; refreshed credentials replace it as a whole.
type Credentials struct {
	AccessKeyID     string    `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string    `json:"-" yaml:"secretAccessKey"`
	SessionToken    string    `json:"-" yaml:"sessionToken"`
	IdentityID      string    `json:"identityId" yaml:"identityId"`
	Authenticated   bool      `json:"authenticated" yaml:"authenticated"`
	Expiration      time.Time `json:"expiration" yaml:"expiration"` // zero means the credentials never expire
}

// Validate reports whether the snapshot can sign requests.
func (c Credentials) Validate() error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return ErrIncompleteCredentials
	}
	return nil
}

// CanExpire reports whether the snapshot carries an expiration time.
func (c Credentials) CanExpire() bool {
	return !c.Expiration.IsZero()
}

// Expired reports whether the snapshot has expired at now.
func (c Credentials) Expired(now time.Time) bool {
	return c.CanExpire() && !now.Before(c.Expiration)
}

// AWS converts the snapshot for use with the aws-sdk-go-v2 signer.
func (c Credentials) AWS() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		SessionToken:    c.SessionToken,
		Source:          CredentialsSource,
		CanExpire:       c.CanExpire(),
		Expires:         c.Expiration,
	}
}

// Provider hands out the current credentials of the signed-in identity.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Credentials, error)

// Credentials calls f.
func (f ProviderFunc) Credentials(ctx context.Context) (Credentials, error) {
	return f(ctx)
}
