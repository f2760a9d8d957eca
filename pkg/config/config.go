package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/shirou/gopsutil/v3/host"
)

// Config carries everything the install pipeline needs from the
// environment. Ambient lookups (username, endpoints) happen once here so
// the stages themselves stay testable with fixed inputs.
type Config struct {
	path      string
	configDir string

	// Actual Config
	MirrorURL   string `json:"mirror-url"`
	ManifestURL string `json:"manifest-url"`
	Owner       string `json:"owner"`
	PolicyPath  string `json:"policy-path"`
}

const (
	DefaultConfigPath  = "~/.config/strata/config.json"
	DefaultMirrorURL   = "https://get.strata.dev"
	DefaultManifestURL = "https://get.strata.dev/manifest.json"
)

func LoadConfig() (*Config, error) {
	if loc := os.Getenv("STRATA_CONFIG"); loc != "" {
		return loadFile(loc)
	}

	path, err := homedir.Expand(DefaultConfigPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return loadFile(path)
	}

	cfg := &Config{
		path:      path,
		configDir: filepath.Dir(path),

		MirrorURL:   DefaultMirrorURL,
		ManifestURL: DefaultManifestURL,
	}

	return updateFromEnv(cfg)
}

func loadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	var cfg Config

	err = json.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.path = path
	cfg.configDir = filepath.Dir(path)

	if cfg.MirrorURL == "" {
		cfg.MirrorURL = DefaultMirrorURL
	}

	if cfg.ManifestURL == "" {
		cfg.ManifestURL = DefaultManifestURL
	}

	return updateFromEnv(&cfg)
}

func updateFromEnv(cfg *Config) (*Config, error) {
	if url := os.Getenv("STRATA_MIRROR"); url != "" {
		cfg.MirrorURL = strings.TrimSuffix(url, "/")
		cfg.ManifestURL = cfg.MirrorURL + "/manifest.json"
	}

	if url := os.Getenv("STRATA_MANIFEST_URL"); url != "" {
		cfg.ManifestURL = url
	}

	if owner := os.Getenv("STRATA_OWNER"); owner != "" {
		cfg.Owner = owner
	}

	if path := os.Getenv("STRATA_POLICY"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("policy file not readable: %s", path)
		}

		cfg.PolicyPath = path
	}

	if cfg.Owner == "" {
		cfg.Owner = lookupOwner()
	}

	return cfg, nil
}

// lookupOwner resolves a default owner for generated package identifiers.
// Empty result means the caller falls back to the project name itself.
func lookupOwner() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}

	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}

	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}

	return ""
}

func (c *Config) ConfigDir() string {
	return c.configDir
}

func (c *Config) ArchiveURL(version, ext string) string {
	return fmt.Sprintf("%s/Strata_Standard_%s.%s", c.MirrorURL, version, ext)
}

func (c *Config) DemoURL(version string) string {
	return fmt.Sprintf("%s/Strata_Demo_%s.tgz", c.MirrorURL, version)
}

func (c *Config) UpdateChannelURL() string {
	return c.MirrorURL + "/installer/LATEST"
}

func (c *Config) UpdateBinaryURL(version, osName, arch string) string {
	return fmt.Sprintf("%s/installer/strata_%s_%s_%s", c.MirrorURL, version, osName, arch)
}

func Platform() (string, string, string) {
	osName, _, osVersion, err := host.PlatformInformation()
	if err != nil {
		osName, osVersion = runtime.GOOS, "unknown"
	}

	arch, err := host.KernelArch()
	if err != nil {
		arch = runtime.GOARCH
	}

	return osName, osVersion, arch
}
