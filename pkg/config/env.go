package config

import (
	"strings"

	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/registry"
)

// FamilyPrefixes is the fixed set of provider-family environment
// prefixes. An environment key carrying one of these prefixes is merged
// into the matching family's options even when the key was never
// declared in the configuration file.
var FamilyPrefixes = []string{
	"SMSPARTNER_",
	"BREVO_",
	"AR24_",
	"APN_",
	"TWILIO_",
	"VONAGE_",
	"MAILEVA_",
	"NOMINATIM_",
	"PHOTON_",
}

// familyPrefixFor maps a declaration to its family prefix, or "" when
// the implementation's short name does not belong to a known family.
func familyPrefixFor(identifier string) string {
	prefix := strings.ToUpper(registry.NameFromIdentifier(identifier)) + "_"
	for _, known := range FamilyPrefixes {
		if prefix == known {
			return prefix
		}
	}
	return ""
}

// ApplyEnvOverrides layers environment values over declared options and
// returns a new declaration list; the input is not modified. Two rules,
// overrides winning in both:
//   - an environment key equal to a declared option key replaces its value;
//   - an environment key with the entry's family prefix is merged in,
//     declared or not.
//
// environ uses the os.Environ "KEY=value" form.
func ApplyEnvOverrides(declarations Providers, environ []string) Providers {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	merged := make(Providers, 0, len(declarations))
	for _, entry := range declarations {
		options := entry.Options.Clone()

		for key := range options {
			if v, ok := env[key]; ok {
				options[key] = v
			}
		}

		if prefix := familyPrefixFor(entry.Identifier); prefix != "" {
			for key, v := range env {
				if strings.HasPrefix(key, prefix) {
					options[key] = v
				}
			}
		}

		merged = append(merged, Entry{Identifier: entry.Identifier, Options: options})
	}
	return merged
}

// MergeDefaults returns declarations whose options are the given
// defaults overlaid with each entry's own options; the per-entry value
// wins on conflict.
func MergeDefaults(declarations Providers, defaults provider.Config) Providers {
	if len(defaults) == 0 {
		return declarations
	}
	merged := make(Providers, 0, len(declarations))
	for _, entry := range declarations {
		options := defaults.Clone()
		for k, v := range entry.Options {
			options[k] = v
		}
		merged = append(merged, Entry{Identifier: entry.Identifier, Options: options})
	}
	return merged
}
