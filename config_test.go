package hostcert_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hostcert-tools/hostcert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequestConfig() *hostcert.Config {
	cfg := hostcert.DefaultConfig()
	cfg.Email = "ops@example.org"
	cfg.RAID = "42"
	cfg.RAName = "Example RA"
	cfg.Organization = "Example Org"
	cfg.Phone = "+49 721 0000"
	return cfg
}

func TestValidateRequestFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*hostcert.Config)
		ok     bool
	}{
		{name: "all mandatory fields set", mutate: func(*hostcert.Config) {}, ok: true},
		{name: "missing email", mutate: func(c *hostcert.Config) { c.Email = "" }},
		{name: "missing ra id", mutate: func(c *hostcert.Config) { c.RAID = "" }},
		{name: "missing ra name", mutate: func(c *hostcert.Config) { c.RAName = "" }},
		{name: "missing organization", mutate: func(c *hostcert.Config) { c.Organization = "" }},
		{name: "missing phone", mutate: func(c *hostcert.Config) { c.Phone = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validRequestConfig()
			tt.mutate(cfg)
			err := cfg.ValidateRequestFields()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := hostcert.DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.ClientCertFile = "user.pem"
	assert.Error(t, cfg.Validate(), "client cert without key must be rejected")
	cfg.ClientKeyFile = "user.key"
	assert.NoError(t, cfg.Validate())

	cfg.SubmitURL = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostcert.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
email = "ops@example.org"
ra_id = "42"
ra_name = "Example RA"
organization = "Example Org"
phone = "+49 721 0000"
domain_suffix = "example.org"
aliases = ["alt1", "alt2"]
output_dir = "/srv/certs"
`), 0o600))

	cfg := hostcert.DefaultConfig()
	require.NoError(t, hostcert.LoadConfig(path, cfg))

	assert.Equal(t, "ops@example.org", cfg.Email)
	assert.Equal(t, "42", cfg.RAID)
	assert.Equal(t, "example.org", cfg.DomainSuffix)
	assert.Equal(t, []string{"alt1", "alt2"}, cfg.GlobalAliases)
	assert.Equal(t, "/srv/certs", cfg.OutputDir)
	// Defaults survive where the file is silent.
	assert.NotEmpty(t, cfg.SubmitURL)

	err := hostcert.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"), cfg)
	assert.Error(t, err)
}
