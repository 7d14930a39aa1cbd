package main

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "trackerkit"

var (
	errNoSecret    = errors.New("no secret stored; run 'trackerctl profile login' or set TRACKERKIT_TOKEN")
	errEmptySecret = errors.New("empty secret")
)

// secretStore keeps one secret per profile.
type secretStore interface {
	Get(profile string) (string, error)
	Set(profile, secret string) error
	Delete(profile string) error
}

// keyringStore uses the system keyring: Keychain on macOS, Secret Service
// on Linux and Credential Manager on Windows.
type keyringStore struct{}

func (keyringStore) Get(profile string) (string, error) {
	secret, err := keyring.Get(keyringService, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", errNoSecret
	}
	if err != nil {
		return "", fmt.Errorf("keyring: %w", err)
	}
	return secret, nil
}

func (keyringStore) Set(profile, secret string) error {
	if err := keyring.Set(keyringService, profile, secret); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}

func (keyringStore) Delete(profile string) error {
	err := keyring.Delete(keyringService, profile)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}
