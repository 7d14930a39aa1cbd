package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/trackerkit/jira"
)

var (
	// ErrProfileNotFound indicates the selected profile exists in neither
	// file and no URL was supplied otherwise.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoGitRoot indicates a local write outside a git repository.
	ErrNoGitRoot = errors.New("git root not found")

	// ErrNoGlobalPath indicates the global config location is unknown.
	ErrNoGlobalPath = errors.New("global config path not configured")
)

// Scope selects which file a write goes to.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeLocal
)

func (r *Resolver) pathFor(scope Scope) (string, os.FileMode, error) {
	if scope == ScopeLocal {
		if r.localPath == "" {
			return "", 0, ErrNoGitRoot
		}
		// Local config is shared with the repository and should be readable.
		return r.localPath, 0o644, nil
	}
	if r.globalPath == "" {
		return "", 0, ErrNoGlobalPath
	}
	return r.globalPath, 0o600, nil
}

// update applies fn to the file for scope and writes it back.
func (r *Resolver) update(scope Scope, fn func(*File) error) error {
	path, mode, err := r.pathFor(scope)
	if err != nil {
		return err
	}

	f := &File{}
	if data, readErr := os.ReadFile(path); readErr == nil {
		if err := yaml.Unmarshal(data, f); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if f.Profiles == nil {
		f.Profiles = make(map[string]yaml.Node)
	}
	if err := fn(f); err != nil {
		return err
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, mode)
}

// SetCurrent persists the current-profile selector.
func (r *Resolver) SetCurrent(scope Scope, name string) error {
	return r.update(scope, func(f *File) error {
		if _, ok := f.Profiles[name]; !ok && scope == ScopeGlobal {
			if _, inLocal := r.load(r.localPath).Profiles[name]; !inLocal {
				return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
			}
		}
		f.Current = name
		return nil
	})
}

// SaveProfile writes the connection settings of cfg (url, api_version and
// non-secret auth fields) into profile name. Other keys already in the
// profile are kept.
func (r *Resolver) SaveProfile(scope Scope, name string, cfg *jira.Config) error {
	return r.update(scope, func(f *File) error {
		values := map[string]any{}
		if node, ok := f.Profiles[name]; ok {
			if err := node.Decode(&values); err != nil {
				return fmt.Errorf("profile %q: %w", name, err)
			}
		}
		values["url"] = cfg.URL
		if cfg.APIVersion != "" {
			values["api_version"] = string(cfg.APIVersion)
		}
		values["auth"] = secretFree(cfg.Auth)

		var node yaml.Node
		if err := node.Encode(values); err != nil {
			return err
		}
		f.Profiles[name] = node
		return nil
	})
}

// DeleteProfile removes profile name. Deleting the current profile clears
// the selector.
func (r *Resolver) DeleteProfile(scope Scope, name string) error {
	return r.update(scope, func(f *File) error {
		delete(f.Profiles, name)
		if f.Current == name {
			f.Current = ""
		}
		return nil
	})
}
