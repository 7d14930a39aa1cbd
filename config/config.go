package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/trackerkit/auth"
	"github.com/randalmurphal/trackerkit/jira"
)

// DefaultProfile is used when nothing selects a profile.
const DefaultProfile = "default"

// File is the on-disk layout shared by the global and local files.
//
//	current: work
//	profiles:
//	  work:
//	    url: https://example.atlassian.net
//	    auth: {type: api_token, email: me@example.com}
//
// Profiles are kept as raw nodes so a local file can override single keys
// of a global profile.
type File struct {
	Current  string               `yaml:"current,omitempty"`
	Profiles map[string]yaml.Node `yaml:"profiles,omitempty"`
}

// ResolverConfig configures where configuration is read from.
type ResolverConfig struct {
	// EnvPrefix is prepended to environment variable names.
	EnvPrefix string

	// GlobalConfigDir is the directory under ~/.config/ holding the global
	// file.
	GlobalConfigDir string

	// GlobalConfigFile defaults to "config.yaml".
	GlobalConfigFile string

	// LocalConfigName is the file looked up at the git root.
	LocalConfigName string

	// GitRootFinder finds the git root. If nil, the nearest parent with a
	// .git directory is used.
	GitRootFinder func(startDir string) (string, error)

	// ErrWriter receives warnings. Defaults to os.Stderr.
	ErrWriter io.Writer
}

// DefaultResolverConfig is the trackerkit layout: ~/.config/trackerkit/
// config.yaml, .trackerkit.yaml at the git root and TRACKERKIT_* variables.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		EnvPrefix:       "TRACKERKIT_",
		GlobalConfigDir: "trackerkit",
		LocalConfigName: ".trackerkit.yaml",
	}
}

func (c ResolverConfig) globalConfigFile() string {
	if c.GlobalConfigFile != "" {
		return c.GlobalConfigFile
	}
	return "config.yaml"
}

// Resolver merges defaults, the global file, the local file, environment
// variables and flags into a client configuration.
type Resolver struct {
	config     ResolverConfig
	globalPath string
	localPath  string
	gitRoot    string

	// Warnings collects non-fatal issues found while reading files.
	Warnings []string
}

// NewResolver creates a resolver, locating the global file under the home
// directory and the local file at the git root of the working directory.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{config: cfg}
	if cfg.ErrWriter == nil {
		r.config.ErrWriter = os.Stderr
	}

	root := ""
	if cfg.GitRootFinder != nil {
		if found, err := cfg.GitRootFinder("."); err == nil {
			root = found
		}
	} else {
		root = findGitRoot(".")
	}
	if root != "" {
		r.gitRoot = root
		if cfg.LocalConfigName != "" {
			r.localPath = filepath.Join(root, cfg.LocalConfigName)
		}
	}

	if cfg.GlobalConfigDir != "" {
		if home, err := os.UserHomeDir(); err == nil {
			r.globalPath = filepath.Join(home, ".config", cfg.GlobalConfigDir, cfg.globalConfigFile())
		}
	}
	return r
}

// NewResolverWithPaths creates a resolver with explicit file paths. An
// empty path disables that layer.
func NewResolverWithPaths(cfg ResolverConfig, globalPath, localPath string) *Resolver {
	r := &Resolver{config: cfg, globalPath: globalPath, localPath: localPath}
	if cfg.ErrWriter == nil {
		r.config.ErrWriter = os.Stderr
	}
	if localPath != "" {
		r.gitRoot = filepath.Dir(localPath)
	}
	return r
}

func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.config.ErrWriter != nil {
		fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
	}
}

// Resolved is a merged configuration for one profile.
type Resolved struct {
	// Profile is the selected profile name.
	Profile string

	// Config is ready for jira.New once it validates.
	Config *jira.Config

	sources map[string]Source
}

// Source returns where a key's value came from, e.g. Source("auth.email").
// Keys that were never set report SourceDefault.
func (c *Resolved) Source(key string) Source {
	if s, ok := c.sources[key]; ok {
		return s
	}
	return SourceDefault
}

// Keys returns every key set by a file, the environment or a flag, sorted.
func (c *Resolved) Keys() []string {
	keys := make([]string, 0, len(c.sources))
	for k, s := range c.sources {
		if s != SourceDefault {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// overrides are the keys settable from the environment or flags. The env
// name is the prefix plus the suffix given here.
var overrides = []struct {
	key    string
	env    string
	target func(*jira.Config) *string
}{
	{"url", "URL", func(c *jira.Config) *string { return &c.URL }},
	{"api_version", "API_VERSION", func(c *jira.Config) *string { return (*string)(&c.APIVersion) }},
	{"auth.type", "AUTH_TYPE", func(c *jira.Config) *string { return (*string)(&c.Auth.Scheme) }},
	{"auth.email", "EMAIL", func(c *jira.Config) *string { return &c.Auth.Email }},
	{"auth.username", "USERNAME", func(c *jira.Config) *string { return &c.Auth.Username }},
	{"auth.token", "TOKEN", func(c *jira.Config) *string { return &c.Auth.Token }},
	{"auth.client_id", "CLIENT_ID", func(c *jira.Config) *string { return &c.Auth.ClientID }},
	{"auth.issuer", "ISSUER", func(c *jira.Config) *string { return &c.Auth.Issuer }},
}

// OverrideKeys lists the keys ResolveWithFlags accepts.
func OverrideKeys() []string {
	keys := make([]string, 0, len(overrides))
	for _, o := range overrides {
		keys = append(keys, o.key)
	}
	return keys
}

// Resolve builds the configuration of the selected profile. profile, when
// non-empty, wins over every other selector.
// Priority (highest to lowest): flags > env > local > global > defaults.
func (r *Resolver) Resolve(profile string) (*Resolved, error) {
	return r.ResolveWithFlags(profile, nil)
}

// ResolveWithFlags resolves and then applies flag values for OverrideKeys.
func (r *Resolver) ResolveWithFlags(profile string, flags map[string]string) (*Resolved, error) {
	global := r.load(r.globalPath)
	local := r.load(r.localPath)

	res := &Resolved{
		Config:  jira.DefaultConfig(),
		sources: make(map[string]Source),
	}
	res.Profile = r.selectProfile(profile, global, local)

	found := false
	for _, layer := range []struct {
		file   *File
		source Source
	}{{global, SourceGlobal}, {local, SourceLocal}} {
		node, ok := layer.file.Profiles[res.Profile]
		if !ok {
			continue
		}
		found = true
		if err := node.Decode(res.Config); err != nil {
			return nil, fmt.Errorf("profile %q in %s config: %w", res.Profile, layer.source, err)
		}
		for _, key := range nodeKeys(&node, "") {
			res.sources[key] = layer.source
		}
	}

	r.applyEnv(res)
	for _, o := range overrides {
		if v := flags[o.key]; v != "" {
			*o.target(res.Config) = v
			res.sources[o.key] = SourceFlag
		}
	}

	if !found && res.Config.URL == "" {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, res.Profile)
	}
	return res, nil
}

func (r *Resolver) selectProfile(explicit string, global, local *File) string {
	switch {
	case explicit != "":
		return explicit
	case r.config.EnvPrefix != "" && os.Getenv(r.config.EnvPrefix+"PROFILE") != "":
		return os.Getenv(r.config.EnvPrefix + "PROFILE")
	case local.Current != "":
		return local.Current
	case global.Current != "":
		return global.Current
	}
	return DefaultProfile
}

func (r *Resolver) applyEnv(res *Resolved) {
	if r.config.EnvPrefix == "" {
		return
	}
	for _, o := range overrides {
		if v := os.Getenv(r.config.EnvPrefix + o.env); v != "" {
			*o.target(res.Config) = v
			res.sources[o.key] = SourceEnv
		}
	}
}

// load reads a config file. A missing file is empty; an unparseable one is
// empty with a warning.
func (r *Resolver) load(path string) *File {
	f := &File{}
	if path == "" {
		return f
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return &File{}
	}
	return f
}

// Profiles lists the profile names defined in either file.
func (r *Resolver) Profiles() []string {
	var names []string
	for _, f := range []*File{r.load(r.globalPath), r.load(r.localPath)} {
		for name := range f.Profiles {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// GitRoot returns the detected git root directory.
func (r *Resolver) GitRoot() string {
	return r.gitRoot
}

// GlobalPath returns the path to the global config file.
func (r *Resolver) GlobalPath() string {
	return r.globalPath
}

// LocalPath returns the path to the local config file.
func (r *Resolver) LocalPath() string {
	return r.localPath
}

// nodeKeys flattens the scalar leaves of a mapping node into dotted keys.
func nodeKeys(n *yaml.Node, prefix string) []string {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	var keys []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		if v := n.Content[i+1]; v.Kind == yaml.MappingNode {
			keys = append(keys, nodeKeys(v, key)...)
		} else {
			keys = append(keys, key)
		}
	}
	return keys
}

// findGitRoot finds the git root by looking for a .git directory.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// secretFree returns creds without the values that belong in a secret
// store.
func secretFree(creds auth.Credentials) auth.Credentials {
	creds.Password = ""
	creds.Token = ""
	creds.ClientSecret = ""
	creds.AccessToken = ""
	creds.RefreshToken = ""
	creds.SharedSecret = ""
	creds.Expiry = time.Time{}
	return creds
}
