package registry

import (
	"slices"

	"github.com/kart-io/missivehub/pkg/missive"
)

// GroupByChannel returns the short names of the given providers grouped
// by the channel types they support, preserving declared order within
// each channel and dropping duplicates. Unresolvable identifiers are
// reported through onError and skipped.
func (r *Registry) GroupByChannel(identifiers []string, onError ErrorHandler) map[missive.ChannelType][]string {
	grouped := make(map[missive.ChannelType][]string)
	for identifier, reg := range r.Iterate(identifiers, onError) {
		name := NameFromIdentifier(identifier)
		for _, channel := range reg.Descriptor.SupportedTypes() {
			if !slices.Contains(grouped[channel], name) {
				grouped[channel] = append(grouped[channel], name)
			}
		}
	}
	return grouped
}

// GroupIdentifiersByChannel is GroupByChannel exposing full identifiers
// instead of short names, for callers that need to resolve again later.
func (r *Registry) GroupIdentifiersByChannel(identifiers []string, onError ErrorHandler) map[missive.ChannelType][]string {
	grouped := make(map[missive.ChannelType][]string)
	for identifier, reg := range r.Iterate(identifiers, onError) {
		for _, channel := range reg.Descriptor.SupportedTypes() {
			if !slices.Contains(grouped[channel], identifier) {
				grouped[channel] = append(grouped[channel], identifier)
			}
		}
	}
	return grouped
}
