// Package config loads and validates the dispatch configuration: the
// ordered provider and address-backend declarations, the deployment
// settings, and the environment override layer that lets secrets
// supersede checked-in defaults without code changes.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kart-io/missivehub/pkg/provider"
)

// Entry pairs an identifier with its options mapping. Declaration order
// is significant: it encodes operator-assigned priority for fallback and
// backend selection.
type Entry struct {
	Identifier string          `yaml:"identifier"`
	Options    provider.Config `yaml:"options"`
}

// Providers is an ordered sequence of provider (or backend)
// declarations. It accepts two YAML shapes: a sequence of identifier
// strings (no per-identifier options) or a mapping from identifier to an
// options mapping, whose insertion order is preserved.
type Providers []Entry

// FromIdentifiers builds a declaration list with empty options.
func FromIdentifiers(identifiers ...string) Providers {
	entries := make(Providers, 0, len(identifiers))
	for _, id := range identifiers {
		entries = append(entries, Entry{Identifier: id, Options: provider.Config{}})
	}
	return entries
}

// Identifiers returns the declared identifiers in order.
func (p Providers) Identifiers() []string {
	ids := make([]string, 0, len(p))
	for _, e := range p {
		ids = append(ids, e.Identifier)
	}
	return ids
}

// Options returns the options declared for an identifier, or an empty
// config when the identifier is not declared. The first declaration wins
// when an identifier repeats.
func (p Providers) Options(identifier string) provider.Config {
	for _, e := range p {
		if e.Identifier == identifier {
			if e.Options == nil {
				return provider.Config{}
			}
			return e.Options
		}
	}
	return provider.Config{}
}

// UnmarshalYAML accepts the two configuration shapes while preserving
// declaration order, which a plain map decode would destroy.
func (p *Providers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		entries := make(Providers, 0, len(node.Content))
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				var id string
				if err := item.Decode(&id); err != nil {
					return err
				}
				entries = append(entries, Entry{Identifier: id, Options: provider.Config{}})
			case yaml.MappingNode:
				var e Entry
				if err := item.Decode(&e); err != nil {
					return err
				}
				if e.Options == nil {
					e.Options = provider.Config{}
				}
				entries = append(entries, e)
			default:
				return fmt.Errorf("line %d: provider entry must be a string or a mapping", item.Line)
			}
		}
		*p = entries
		return nil

	case yaml.MappingNode:
		// Mapping content alternates key and value nodes, in document order.
		entries := make(Providers, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var id string
			if err := node.Content[i].Decode(&id); err != nil {
				return err
			}
			options := provider.Config{}
			if node.Content[i+1].Kind != yaml.ScalarNode || node.Content[i+1].Value != "" {
				if err := node.Content[i+1].Decode(&options); err != nil {
					return err
				}
			}
			entries = append(entries, Entry{Identifier: id, Options: options})
		}
		*p = entries
		return nil

	default:
		return fmt.Errorf("line %d: providers must be a sequence or a mapping", node.Line)
	}
}
