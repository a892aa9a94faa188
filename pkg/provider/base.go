package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider/pkgcheck"
)

// Base carries the behavior shared by every provider and address-backend
// implementation: descriptor access, config copying and filtering, and
// the package/config prerequisite checks. Implementations embed it and
// layer their channel operations on top.
type Base struct {
	descriptor *Descriptor
	raw        Config
	config     Config
	packages   *pkgcheck.Set
	clock      func() time.Time
}

// BaseOption customizes a Base at construction.
type BaseOption func(*Base)

// WithPackageSet overrides the package availability set, mainly for tests.
func WithPackageSet(set *pkgcheck.Set) BaseOption {
	return func(b *Base) { b.packages = set }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) BaseOption {
	return func(b *Base) { b.clock = clock }
}

// NewBase binds a descriptor to a copied config. The copy makes external
// mutation of the source config after construction invisible to the
// instance.
func NewBase(descriptor *Descriptor, config Config, opts ...BaseOption) *Base {
	b := &Base{
		descriptor: descriptor,
		raw:        config.Clone(),
		packages:   pkgcheck.Default,
		clock:      time.Now,
	}
	b.config = b.filterConfig(b.raw)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// filterConfig keeps the subset of keys the descriptor declares. With no
// declared keys the whole config passes through.
func (b *Base) filterConfig(config Config) Config {
	keys := b.descriptor.ConfigKeys()
	if len(keys) == 0 {
		return config.Clone()
	}
	filtered := make(Config, len(keys))
	for _, key := range keys {
		if v, ok := config[key]; ok {
			filtered[key] = v
		}
	}
	return filtered
}

// Descriptor returns the implementation's capability metadata.
func (b *Base) Descriptor() *Descriptor {
	return b.descriptor
}

// Config returns the filtered configuration bound to the instance.
func (b *Base) Config() Config {
	return b.config
}

// ConfigValue returns a single config value, empty when absent.
func (b *Base) ConfigValue(key string) string {
	return b.config[key]
}

// RawValue reads the unfiltered construction config. It serves optional
// keys that are deliberately outside the declared (required) set, such
// as endpoint overrides.
func (b *Base) RawValue(key string) string {
	return b.raw[key]
}

// Supports reports whether the descriptor lists the channel.
func (b *Base) Supports(channel missive.ChannelType) bool {
	return b.descriptor.Supports(channel)
}

// CheckRequiredPackages reports availability per declared package. An
// implementation with no declared packages gets an empty, vacuously
// satisfied map.
func (b *Base) CheckRequiredPackages() map[string]bool {
	required := b.descriptor.RequiredPackages()
	status := make(map[string]bool, len(required))
	for _, pkg := range required {
		status[pkg] = b.packages.Installed(pkg)
	}
	return status
}

// CheckConfigKeys reports, for each declared key, whether the given
// config holds a non-empty value for it. A nil config checks the
// instance's own bound config.
func (b *Base) CheckConfigKeys(config Config) map[string]bool {
	if config == nil {
		config = b.raw
	}
	keys := b.descriptor.ConfigKeys()
	status := make(map[string]bool, len(keys))
	for _, key := range keys {
		v, ok := config[key]
		status[key] = ok && v != ""
	}
	return status
}

// CheckPackageAndConfig bundles both prerequisite checks.
func (b *Base) CheckPackageAndConfig() ValidationReport {
	return ValidationReport{
		Packages: b.CheckRequiredPackages(),
		Config:   b.CheckConfigKeys(nil),
	}
}

// Validate returns overall validity with a reason when invalid. It is
// consistent with the check methods: valid only when both are all-true.
func (b *Base) Validate() (bool, string) {
	// Walk the declared order so the reason reads the same on every call.
	var missingPackages []string
	for _, pkg := range b.descriptor.RequiredPackages() {
		if !b.packages.Installed(pkg) {
			missingPackages = append(missingPackages, pkg)
		}
	}
	if len(missingPackages) > 0 {
		return false, fmt.Sprintf("missing required packages: %s", strings.Join(missingPackages, ", "))
	}

	var missingKeys []string
	for _, key := range b.descriptor.ConfigKeys() {
		if v, ok := b.raw[key]; !ok || v == "" {
			missingKeys = append(missingKeys, key)
		}
	}
	if len(missingKeys) > 0 {
		return false, fmt.Sprintf("missing required configuration keys: %s", strings.Join(missingKeys, ", "))
	}

	return true, ""
}

// ServiceStatus returns the default cheap status: the declared service
// surface with no live information. Implementations override this when
// they can say more without touching the network.
func (b *Base) ServiceStatus() *ServiceStatus {
	return &ServiceStatus{
		Status:    "unknown",
		LastCheck: b.clock(),
		Warnings:  []string{"service status not implemented for this provider"},
	}
}

// Now exposes the instance clock to embedding implementations.
func (b *Base) Now() time.Time {
	return b.clock()
}
