// Package missivehub is the entry point of the multi-channel dispatch
// library: configuration-driven provider resolution, sending with
// automatic fallback, address verification with backend selection, and
// delivery receipts.
//
// Basic usage:
//
//	cfg, err := missivehub.LoadConfig("missive.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	hub, err := missivehub.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer hub.Close()
//
//	m := missivehub.NewMissive(missivehub.ChannelSMS)
//	m.RecipientPhone = "+33612345678"
//	m.Body = "Your parcel has shipped"
//
//	outcome, err := hub.Send(context.Background(), m)
package missivehub

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/missivehub/observability"
	"github.com/kart-io/missivehub/pkg/address"
	"github.com/kart-io/missivehub/pkg/config"
	"github.com/kart-io/missivehub/pkg/errors"
	"github.com/kart-io/missivehub/pkg/missive"
	"github.com/kart-io/missivehub/pkg/provider"
	"github.com/kart-io/missivehub/pkg/provider/registry"
	"github.com/kart-io/missivehub/pkg/receipt"
	"github.com/kart-io/missivehub/pkg/sender"
	"github.com/kart-io/missivehub/pkg/utils/logger"

	// Bundled implementations register themselves at init time.
	_ "github.com/kart-io/missivehub/pkg/address/backends"
	_ "github.com/kart-io/missivehub/pkg/providers/brevo"
	_ "github.com/kart-io/missivehub/pkg/providers/smspartner"
	_ "github.com/kart-io/missivehub/pkg/providers/vonage"
)

// Convenience aliases so most callers only import this package.
type (
	// Missive is the outbound message model.
	Missive = missive.Missive

	// ChannelType identifies a delivery channel.
	ChannelType = missive.ChannelType

	// DispatchResult is the outcome of a single channel operation.
	DispatchResult = missive.DispatchResult

	// Outcome is the full record of a dispatch with fallback.
	Outcome = sender.Outcome

	// Config is the dispatch configuration.
	Config = config.Config

	// Receipt is the persisted trace of a dispatched missive.
	Receipt = receipt.Receipt
)

// Channel constants re-exported for callers of the facade.
const (
	ChannelEmail            = missive.ChannelEmail
	ChannelSMS              = missive.ChannelSMS
	ChannelPostal           = missive.ChannelPostal
	ChannelLRE              = missive.ChannelLRE
	ChannelRCS              = missive.ChannelRCS
	ChannelVoiceCall        = missive.ChannelVoiceCall
	ChannelNotification     = missive.ChannelNotification
	ChannelPushNotification = missive.ChannelPushNotification
	ChannelBranded          = missive.ChannelBranded
)

// NewMissive creates a pending missive for the given channel.
func NewMissive(channel ChannelType) *Missive {
	return missive.New(channel)
}

// LoadConfig reads and validates a configuration file, with
// MISSIVE_-prefixed and provider-family environment overrides applied.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Hub ties the configured providers, the fallback sender, the address
// selector, the receipt store and telemetry together.
type Hub struct {
	config    *config.Config
	logger    logger.Interface
	sender    *sender.MissiveSender
	selector  *address.Selector
	receipts  receipt.Store
	telemetry *observability.TelemetryProvider
}

// New builds a hub from a validated configuration.
func New(cfg *Config) (*Hub, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Default.LogMode(logLevelFor(cfg.LogLevel))

	telemetry, err := observability.NewTelemetryProvider(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	receipts, err := receiptStoreFor(cfg)
	if err != nil {
		return nil, err
	}

	opts := []sender.Option{
		sender.WithDefaults(cfg.Defaults),
		sender.WithSandbox(cfg.Sandbox),
		sender.WithLogger(log),
	}
	return &Hub{
		config:    cfg,
		logger:    log,
		sender:    sender.NewSender(cfg.Providers, opts...),
		selector:  address.NewSelector(address.WithLogger(log)),
		receipts:  receipts,
		telemetry: telemetry,
	}, nil
}

func logLevelFor(name string) logger.LogLevel {
	switch name {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	case "debug":
		return logger.Debug
	default:
		return logger.Warn
	}
}

func receiptStoreFor(cfg *Config) (receipt.Store, error) {
	if cfg.Receipts.Backend != "redis" {
		return receipt.NewMemoryStore(0), nil
	}
	redisCfg := receipt.DefaultRedisConfig()
	if cfg.Receipts.RedisAddr != "" {
		redisCfg.Addr = cfg.Receipts.RedisAddr
	}
	redisCfg.DB = cfg.Receipts.RedisDB
	store, err := receipt.NewRedisStore(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("init receipt store: %w", err)
	}
	return store, nil
}

// Send dispatches a missive with automatic provider fallback, records
// telemetry and persists a receipt.
func (h *Hub) Send(ctx context.Context, m *Missive) (*Outcome, error) {
	candidates, _ := h.sender.ProviderPathsFor(m)
	ctx, span := h.telemetry.TraceDispatch(ctx, m.ID, m.ChannelType, len(candidates))
	defer span.End()

	begin := time.Now()
	outcome, err := h.sender.Send(ctx, m)
	if err != nil {
		h.telemetry.SetSpanError(span, err)
		h.telemetry.RecordMissiveFailed(ctx, m.ChannelType, len(outcome.Attempts), time.Since(begin), errorTypeOf(err))
	} else {
		h.telemetry.SetSpanSuccess(span)
		h.telemetry.RecordMissiveSent(ctx, registry.NameFromIdentifier(outcome.Provider),
			m.ChannelType, len(outcome.Attempts), time.Since(begin))
	}

	if saveErr := h.receipts.Save(ctx, receipt.FromMissive(m, len(outcome.Attempts))); saveErr != nil {
		h.logger.Warn(ctx, "failed to persist receipt for missive %s: %v", m.ID, saveErr)
	}
	return outcome, err
}

func errorTypeOf(err error) string {
	return string(errors.CodeOf(err))
}

// VerifyAddress verifies an address through the first working configured
// backend.
func (h *Hub) VerifyAddress(ctx context.Context, q address.Query) (*address.VerificationResult, error) {
	verifier, identifier, err := h.selector.Select(ctx, h.config.AddressBackends)
	if err != nil {
		return nil, err
	}

	ctx, span := h.telemetry.TraceAddressVerification(ctx, registry.NameFromIdentifier(identifier))
	defer span.End()

	result, err := verifier.VerifyAddress(ctx, q)
	if err != nil {
		h.telemetry.SetSpanError(span, err)
		return nil, err
	}
	h.telemetry.SetSpanSuccess(span)
	if result.Confidence < h.config.MinAddressConfidence {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("confidence %.2f below configured minimum %.2f", result.Confidence, h.config.MinAddressConfidence))
	}
	return result, nil
}

// DescribeAddressBackends probes every configured backend and reports
// their status, the selected backend and one sample verification.
func (h *Hub) DescribeAddressBackends(ctx context.Context) *address.Report {
	report := h.selector.Describe(ctx, h.config.AddressBackends)
	for _, item := range report.Items {
		h.telemetry.RecordBackendProbe(ctx, item.ClassName, string(item.Status))
	}
	return report
}

// ProvidersByChannel lists the short names of configured providers per
// channel, preserving declaration order.
func (h *Hub) ProvidersByChannel() map[ChannelType][]string {
	return registry.Default.GroupByChannel(h.config.Providers.Identifiers(), nil)
}

// ValidateProviders constructs every declared provider and reports its
// readiness, keyed by identifier.
func (h *Hub) ValidateProviders(ctx context.Context) map[string]provider.ValidationReport {
	reports := make(map[string]provider.ValidationReport, len(h.config.Providers))
	for identifier, reg := range registry.Default.Iterate(h.config.Providers.Identifiers(), func(id string, err error) {
		h.logger.Warn(ctx, "cannot validate %s: %v", id, err)
	}) {
		instance, err := reg.Factory(h.config.Providers.Options(identifier))
		if err != nil {
			h.logger.Warn(ctx, "cannot construct %s: %v", identifier, err)
			continue
		}
		reports[identifier] = provider.ValidationReport{
			Packages: instance.CheckRequiredPackages(),
			Config:   instance.CheckConfigKeys(nil),
			Geo:      reg.Descriptor.GeoSummary(),
		}
	}
	return reports
}

// Receipts exposes the receipt store.
func (h *Hub) Receipts() receipt.Store {
	return h.receipts
}

// Close flushes telemetry and releases the receipt store.
func (h *Hub) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.telemetry.Shutdown(ctx); err != nil {
		return err
	}
	return h.receipts.Close()
}
