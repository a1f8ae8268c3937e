package signer

import "fmt"

// MalformedURLError reports a URL that cannot be parsed or classified.
type MalformedURLError struct {
	URL    string
	Reason string
	Err    error
}

func (e *MalformedURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed url %q: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed url %q: %s", e.URL, e.Reason)
}

func (e *MalformedURLError) Unwrap() error { return e.Err }

// ConfigurationError reports a transformer setting that is missing or
// invalid for the request at hand.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("signer configuration: %s %s", e.Setting, e.Reason)
}

// CredentialRefreshError reports that the credential provider kept failing
// until the retry budget ran out.
type CredentialRefreshError struct {
	Attempts int
	Err      error
}

func (e *CredentialRefreshError) Error() string {
	return fmt.Sprintf("credential refresh failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CredentialRefreshError) Unwrap() error { return e.Err }
