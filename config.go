package hostcert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config holds everything one invocation of the tool needs. It is built once
// at startup (defaults, then config file, then flags) and passed around as an
// immutable value; nothing mutates it after Validate.
type Config struct {
	Email        string `toml:"email" comment:"Requester contact email (mandatory for REQUEST)"`
	RAID         string `toml:"ra_id" comment:"Registration authority number (mandatory for REQUEST)"`
	RAName       string `toml:"ra_name" comment:"Registration authority name (mandatory for REQUEST)"`
	Organization string `toml:"organization" comment:"Subject organization (mandatory for REQUEST)"`
	Phone        string `toml:"phone" comment:"Requester phone number (mandatory for REQUEST)"`

	Salutation string `toml:"salutation" comment:"Salutation variant sent with the form"`
	Comment    string `toml:"comment" comment:"Free-text comment sent with every request"`

	DomainSuffix  string   `toml:"domain_suffix" comment:"Appended to every hostname and alias"`
	GlobalAliases []string `toml:"aliases" comment:"Aliases added to every requested host"`

	CacheDir  string `toml:"cache_dir" comment:"Request cache directory"`
	OutputDir string `toml:"output_dir" comment:"Where finalized key+certificate pairs are moved"`

	SubmitURL string `toml:"submit_url" comment:"CA request form endpoint"`
	FetchURL  string `toml:"fetch_url" comment:"CA certificate retrieval endpoint"`
	ChainURL  string `toml:"chain_url" comment:"CA trust chain download URL"`

	ClientCertFile string `toml:"client_cert_file" comment:"Optional user certificate for client auth"`
	ClientKeyFile  string `toml:"client_key_file" comment:"Key for client_cert_file"`

	JournalFile string `toml:"journal_file" comment:"Optional SQLite journal of lifecycle events"`
}

// DefaultConfig returns the built-in defaults for the one CA this tool
// targets.
func DefaultConfig() *Config {
	cacheDir := ".hostcert-cache"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".hostcert-cache")
	}
	return &Config{
		CacheDir:  cacheDir,
		OutputDir: ".",
		SubmitURL: "https://ca.kit.edu/p/hostcert/request",
		FetchURL:  "https://ca.kit.edu/p/hostcert/fetch",
		ChainURL:  "https://ca.kit.edu/kit-ca-chain.pem",
	}
}

// LoadConfig overlays the TOML file at path onto cfg in place.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// Validate checks the fields every run mode needs.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("config: cache_dir cannot be empty")
	}
	if c.SubmitURL == "" {
		return errors.New("config: submit_url cannot be empty")
	}
	if c.FetchURL == "" {
		return errors.New("config: fetch_url cannot be empty")
	}
	if c.ChainURL == "" {
		return errors.New("config: chain_url cannot be empty")
	}
	if (c.ClientCertFile == "") != (c.ClientKeyFile == "") {
		return errors.New("config: client_cert_file and client_key_file must be set together")
	}
	return nil
}

// ValidateRequestFields checks the fields the CA form makes mandatory.
// Only REQUEST submits the form, so only REQUEST enforces these.
func (c *Config) ValidateRequestFields() error {
	if c.Email == "" {
		return errors.New("config: email cannot be empty for REQUEST")
	}
	if c.RAID == "" {
		return errors.New("config: ra_id cannot be empty for REQUEST")
	}
	if c.RAName == "" {
		return errors.New("config: ra_name cannot be empty for REQUEST")
	}
	if c.Organization == "" {
		return errors.New("config: organization cannot be empty for REQUEST")
	}
	if c.Phone == "" {
		return errors.New("config: phone cannot be empty for REQUEST")
	}
	return nil
}

// submitFields assembles the fixed form metadata for one submission.
func (c *Config) submitFields(sans []string) SubmitFields {
	return SubmitFields{
		Salutation: c.Salutation,
		Email:      c.Email,
		Phone:      c.Phone,
		RAName:     c.RAName,
		RAID:       c.RAID,
		Comment:    c.Comment,
		SANList:    sans,
	}
}
