package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/missivehub/pkg/provider"
)

func TestProvidersUnmarshalMappingShape(t *testing.T) {
	raw := `
providers:
  missivehub.providers.smspartner.SMSPartnerProvider:
    SMSPARTNER_API_KEY: key-1
  missivehub.providers.brevo.BrevoProvider:
    BREVO_API_KEY: key-2
  missivehub.providers.vonage.VonageProvider:
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	// Mapping shape preserves document order; a plain map decode would not.
	assert.Equal(t, []string{
		"missivehub.providers.smspartner.SMSPartnerProvider",
		"missivehub.providers.brevo.BrevoProvider",
		"missivehub.providers.vonage.VonageProvider",
	}, cfg.Providers.Identifiers())

	assert.Equal(t, "key-1", cfg.Providers.Options("missivehub.providers.smspartner.SMSPartnerProvider")["SMSPARTNER_API_KEY"])
	assert.NotNil(t, cfg.Providers.Options("missivehub.providers.vonage.VonageProvider"))
}

func TestProvidersUnmarshalSequenceShape(t *testing.T) {
	raw := `
providers:
  - missivehub.providers.brevo.BrevoProvider
  - identifier: missivehub.providers.vonage.VonageProvider
    options:
      VONAGE_API_KEY: k
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, []string{
		"missivehub.providers.brevo.BrevoProvider",
		"missivehub.providers.vonage.VonageProvider",
	}, cfg.Providers.Identifiers())
	assert.Equal(t, "k", cfg.Providers.Options("missivehub.providers.vonage.VonageProvider")["VONAGE_API_KEY"])
}

func TestProvidersUnmarshalRejectsScalar(t *testing.T) {
	var cfg Config
	assert.Error(t, yaml.Unmarshal([]byte("providers: 42\n"), &cfg))
}

func TestProvidersOptionsFirstDeclarationWins(t *testing.T) {
	p := Providers{
		{Identifier: "a.B", Options: provider.Config{"K": "first"}},
		{Identifier: "a.B", Options: provider.Config{"K": "second"}},
	}
	assert.Equal(t, "first", p.Options("a.B")["K"])
	assert.Empty(t, p.Options("a.Missing"))
}

func TestApplyEnvOverrides(t *testing.T) {
	declarations := Providers{
		{
			Identifier: "missivehub.providers.brevo.BrevoProvider",
			Options:    provider.Config{"BREVO_API_KEY": "from-file", "CUSTOM_KEY": "declared"},
		},
		{
			Identifier: "missivehub.providers.acme.AcmeProvider",
			Options:    provider.Config{"ACME_TOKEN": "from-file"},
		},
	}

	environ := []string{
		"BREVO_API_KEY=from-env",
		"BREVO_SMS_SENDER=Acme",
		"CUSTOM_KEY=overridden",
		"ACME_TOKEN=env-token",
		"UNRELATED=noise",
	}
	merged := ApplyEnvOverrides(declarations, environ)

	brevo := merged.Options("missivehub.providers.brevo.BrevoProvider")
	// Exact declared keys are replaced.
	assert.Equal(t, "from-env", brevo["BREVO_API_KEY"])
	assert.Equal(t, "overridden", brevo["CUSTOM_KEY"])
	// Family-prefixed keys merge in even when undeclared.
	assert.Equal(t, "Acme", brevo["BREVO_SMS_SENDER"])
	assert.NotContains(t, brevo, "UNRELATED")

	// Unknown families only get exact-key replacement, no prefix merge.
	acme := merged.Options("missivehub.providers.acme.AcmeProvider")
	assert.Equal(t, "env-token", acme["ACME_TOKEN"])

	// The input declarations are untouched.
	assert.Equal(t, "from-file", declarations.Options("missivehub.providers.brevo.BrevoProvider")["BREVO_API_KEY"])
}

func TestMergeDefaults(t *testing.T) {
	declarations := Providers{
		{Identifier: "a.B", Options: provider.Config{"K": "own"}},
		{Identifier: "c.D", Options: provider.Config{}},
	}
	defaults := provider.Config{"K": "default", "SANDBOX": "true"}

	merged := MergeDefaults(declarations, defaults)
	assert.Equal(t, "own", merged.Options("a.B")["K"])
	assert.Equal(t, "true", merged.Options("a.B")["SANDBOX"])
	assert.Equal(t, "default", merged.Options("c.D")["K"])

	same := MergeDefaults(declarations, nil)
	assert.Equal(t, declarations, same)
}

func TestFromIdentifiers(t *testing.T) {
	p := FromIdentifiers("a.B", "c.D")
	assert.Equal(t, []string{"a.B", "c.D"}, p.Identifiers())
	assert.NotNil(t, p.Options("a.B"))
}

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, DefaultMinAddressConfidence, cfg.MinAddressConfidence)
	assert.Equal(t, "memory", cfg.Receipts.Backend)
	assert.Equal(t, "missivehub", cfg.Telemetry.ServiceName)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := New()
	cfg.Providers = FromIdentifiers("nodots")
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.MinAddressConfidence = 1.5
	assert.Error(t, cfg.Validate())

	cfg = New()
	cfg.Receipts.Backend = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  missivehub.providers.brevo.BrevoProvider:
    BREVO_API_KEY: file-key
defaults:
  DEFAULT_FROM_EMAIL: noreply@example.com
sandbox: true
log_level: debug
address_backends:
  - missivehub.backends.nominatim.NominatimBackend
`), 0o600))

	t.Setenv("BREVO_API_KEY", "env-key")
	t.Setenv("NOMINATIM_USER_AGENT", "test-agent")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Sandbox)
	assert.Equal(t, "debug", cfg.LogLevel)

	brevo := cfg.Providers.Options("missivehub.providers.brevo.BrevoProvider")
	assert.Equal(t, "env-key", brevo["BREVO_API_KEY"], "environment beats the file")
	assert.Equal(t, "noreply@example.com", brevo["DEFAULT_FROM_EMAIL"], "defaults merge under options")

	nominatim := cfg.AddressBackends.Options("missivehub.backends.nominatim.NominatimBackend")
	assert.Equal(t, "test-agent", nominatim["NOMINATIM_USER_AGENT"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
