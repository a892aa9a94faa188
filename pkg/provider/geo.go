package provider

import (
	"strings"

	"github.com/kart-io/missivehub/pkg/missive"
)

// GeoRestriction is the ordered set of region codes a channel may be
// delivered to. An empty restriction and the "*" sentinel both mean
// unrestricted. Absence of a restriction (a descriptor without an entry
// for the channel) means "not documented", which is reported distinctly.
type GeoRestriction []string

// Unrestricted is the sentinel for worldwide delivery.
var Unrestricted = GeoRestriction{}

// ParseGeo builds a GeoRestriction from a declared value: "*", a single
// region code, or a comma-separated list.
func ParseGeo(value string) GeoRestriction {
	value = strings.TrimSpace(value)
	if value == "" || value == "*" {
		return Unrestricted
	}
	if !strings.Contains(value, ",") {
		return GeoRestriction{value}
	}
	var regions []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			regions = append(regions, part)
		}
	}
	return GeoRestriction(regions)
}

// IsUnrestricted reports whether delivery is allowed everywhere.
func (g GeoRestriction) IsUnrestricted() bool {
	if len(g) == 0 {
		return true
	}
	for _, region := range g {
		if strings.TrimSpace(region) == "*" {
			return true
		}
	}
	return false
}

// Allows reports whether the destination falls inside the restriction.
// Matching is case-insensitive on both country and continent tokens.
func (g GeoRestriction) Allows(dest missive.Destination) bool {
	if g.IsUnrestricted() {
		return true
	}
	country := strings.TrimSpace(dest.Country)
	continent := strings.TrimSpace(dest.Continent)
	for _, region := range g {
		token := strings.TrimSpace(region)
		if token == "" {
			continue
		}
		if country != "" && strings.EqualFold(token, country) {
			return true
		}
		if continent != "" && strings.EqualFold(token, continent) {
			return true
		}
	}
	return false
}

// String renders the restriction in its declared form.
func (g GeoRestriction) String() string {
	if g.IsUnrestricted() {
		return "*"
	}
	return strings.Join(g, ",")
}
