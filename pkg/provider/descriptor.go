package provider

import (
	"github.com/kart-io/missivehub/pkg/missive"
)

// GeoAttributeNames maps the fixed geo-attribute vocabulary to channel
// types. These nine names are a stable contract for reporting tooling.
var GeoAttributeNames = map[string]missive.ChannelType{
	"email_geo":             missive.ChannelEmail,
	"sms_geo":               missive.ChannelSMS,
	"postal_geo":            missive.ChannelPostal,
	"lre_geo":               missive.ChannelLRE,
	"rcs_geo":               missive.ChannelRCS,
	"voice_call_geo":        missive.ChannelVoiceCall,
	"notification_geo":      missive.ChannelNotification,
	"push_notification_geo": missive.ChannelPushNotification,
	"branded_geo":           missive.ChannelBranded,
}

// Descriptor is the static capability metadata attached to an
// implementation type. It is built once at registration time and never
// mutated afterwards; specializations compose their descriptor from a
// base via Inherit, so geo lookups are flat map reads at runtime.
type Descriptor struct {
	name             string
	displayName      string
	supportedTypes   []missive.ChannelType
	requiredPackages []string
	configKeys       []string
	geo              map[missive.ChannelType]GeoRestriction
	documentationURL string
	siteURL          string
}

// GeoSummary renders the documented geo restrictions keyed by the
// stable attribute names, for status and report output. Channels the
// descriptor does not document are absent from the result.
func (d *Descriptor) GeoSummary() map[string]string {
	summary := make(map[string]string)
	for name, channel := range GeoAttributeNames {
		if restriction, ok := d.geo[channel]; ok {
			summary[name] = restriction.String()
		}
	}
	return summary
}

// NewDescriptor starts a descriptor for the given canonical name.
func NewDescriptor(name string) *Descriptor {
	return &Descriptor{
		name: name,
		geo:  make(map[missive.ChannelType]GeoRestriction),
	}
}

// Builder methods. Each returns the descriptor for chaining; they are
// only meant to run during registration, before the descriptor is shared.

func (d *Descriptor) WithDisplayName(displayName string) *Descriptor {
	d.displayName = displayName
	return d
}

func (d *Descriptor) WithSupportedTypes(types ...missive.ChannelType) *Descriptor {
	d.supportedTypes = types
	return d
}

func (d *Descriptor) WithRequiredPackages(packages ...string) *Descriptor {
	d.requiredPackages = packages
	return d
}

func (d *Descriptor) WithConfigKeys(keys ...string) *Descriptor {
	d.configKeys = keys
	return d
}

func (d *Descriptor) WithGeo(channel missive.ChannelType, restriction GeoRestriction) *Descriptor {
	d.geo[channel] = restriction
	return d
}

func (d *Descriptor) WithDocumentationURL(url string) *Descriptor {
	d.documentationURL = url
	return d
}

func (d *Descriptor) WithSiteURL(url string) *Descriptor {
	d.siteURL = url
	return d
}

// Inherit merges a base descriptor into this one: values already set on
// the specialization win, base values fill the gaps. Geo restrictions
// merge per channel, most specific first.
func (d *Descriptor) Inherit(base *Descriptor) *Descriptor {
	if base == nil {
		return d
	}
	if d.displayName == "" {
		d.displayName = base.displayName
	}
	if len(d.supportedTypes) == 0 {
		d.supportedTypes = append([]missive.ChannelType(nil), base.supportedTypes...)
	}
	if len(d.requiredPackages) == 0 {
		d.requiredPackages = append([]string(nil), base.requiredPackages...)
	}
	if len(d.configKeys) == 0 {
		d.configKeys = append([]string(nil), base.configKeys...)
	}
	for channel, restriction := range base.geo {
		if _, overridden := d.geo[channel]; !overridden {
			d.geo[channel] = restriction
		}
	}
	if d.documentationURL == "" {
		d.documentationURL = base.documentationURL
	}
	if d.siteURL == "" {
		d.siteURL = base.siteURL
	}
	return d
}

// Name returns the canonical implementation name.
func (d *Descriptor) Name() string { return d.name }

// DisplayName returns the human-readable name, falling back to Name.
func (d *Descriptor) DisplayName() string {
	if d.displayName != "" {
		return d.displayName
	}
	return d.name
}

// SupportedTypes returns the channel types the implementation dispatches.
func (d *Descriptor) SupportedTypes() []missive.ChannelType {
	return append([]missive.ChannelType(nil), d.supportedTypes...)
}

// Supports reports whether the channel is in the supported set.
func (d *Descriptor) Supports(channel missive.ChannelType) bool {
	for _, t := range d.supportedTypes {
		if t == channel {
			return true
		}
	}
	return false
}

// RequiredPackages returns the declared package prerequisites, in order.
func (d *Descriptor) RequiredPackages() []string {
	return append([]string(nil), d.requiredPackages...)
}

// ConfigKeys returns the declared configuration keys, in order.
func (d *Descriptor) ConfigKeys() []string {
	return append([]string(nil), d.configKeys...)
}

// Geo returns the restriction declared for the channel. The second
// return is false when no restriction is documented at all, which is
// distinct from an unrestricted one.
func (d *Descriptor) Geo(channel missive.ChannelType) (GeoRestriction, bool) {
	restriction, ok := d.geo[channel]
	return restriction, ok
}

// DocumentationURL returns the provider documentation link, if declared.
func (d *Descriptor) DocumentationURL() string { return d.documentationURL }

// SiteURL returns the provider site link, if declared.
func (d *Descriptor) SiteURL() string { return d.siteURL }
