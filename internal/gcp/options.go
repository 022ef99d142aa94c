package gcp

import "google.golang.org/api/option"

// ClientOptions authenticates every client with the given service account
// key file. An empty path falls back to application default credentials.
func ClientOptions(credentialsFile string) []option.ClientOption {
	if credentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
}
