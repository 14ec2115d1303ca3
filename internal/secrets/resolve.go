// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package secrets

import (
	"log/slog"
	"os"
	"strings"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

const keyringScheme = "keyring://"

// KeyringService is the service name Recall uses in the OS keyring.
const KeyringService = "recall"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key
// URI. Returns an error if the URI is malformed.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", recallerr.Errorf(recallerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", recallerr.Errorf(recallerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return parts[0], parts[1], nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Returns the original value unchanged if it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", recallerr.Wrapf(err, recallerr.CodeSecretResolveFailure,
			"resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveAPIKey resolves a backend provider's API key. Precedence:
//  1. the configured value (resolving keyring:// URIs),
//  2. the provider's conventional environment variable
//     (e.g. OPENAI_API_KEY),
//  3. the OS keyring entry recall/<provider>-api-key.
//
// Returns empty string when nothing is configured; the backend is then
// treated as unavailable.
func ResolveAPIKey(store Store, provider, configured string) string {
	if configured != "" {
		resolved, err := ResolveKeyringURI(store, configured)
		if err == nil && resolved != "" {
			return resolved
		}
		if err != nil {
			slog.Warn("failed to resolve configured API key, trying environment",
				"provider", provider, "error", err)
		}
	}

	envVar := strings.ToUpper(provider) + "_API_KEY"
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if store != nil {
		val, err := store.Retrieve(KeyringService, provider+"-api-key")
		if err == nil {
			return val
		}
		if !recallerr.HasCode(err, recallerr.CodeSecretNotFound) {
			slog.Debug("keyring lookup failed", "provider", provider, "error", err)
		}
	}

	return ""
}
