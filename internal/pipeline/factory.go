package pipeline

import (
	"baserow-bridge/internal/baserow"
	"baserow-bridge/internal/common/logging"
	"baserow-bridge/internal/config"
	"baserow-bridge/internal/dispatch"
	"baserow-bridge/internal/records"
)

// FromConfig wires a Baserow fetcher, the status filter, the record builder
// and the webhook dispatcher from cfg. store and locker may be nil.
func FromConfig(cfg *config.Config, store Recorder, locker Locker, logger logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	var filter *baserow.Filter
	if cfg.FilterMode == config.FilterServer && !cfg.ServerSideFilter() {
		logger.Info("Server-side filter skipped for id matching, filtering locally",
			logging.String("status_field", cfg.StatusField))
	}
	if cfg.ServerSideFilter() {
		filter = &baserow.Filter{
			Field: cfg.StatusField,
			Type:  cfg.FilterType,
			Value: cfg.TargetStatus,
		}
	}

	source, err := baserow.NewFetcher(baserow.Options{
		URL:                cfg.SourceURL(),
		Token:              cfg.BaserowAPIToken,
		PageSize:           cfg.PageSize,
		PageDelay:          cfg.PageDelay,
		Timeout:            cfg.FetchTimeout,
		MaxAttempts:        cfg.SourceMaxAttempts,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Filter:             filter,
	}, logger)
	if err != nil {
		return nil, err
	}

	sink, err := dispatch.New(dispatch.Options{
		URL:                cfg.N8NWebhookURL,
		Mode:               cfg.DispatchMode,
		BatchSize:          cfg.BatchSize,
		BatchInterval:      cfg.BatchInterval,
		ProgressInterval:   cfg.BatchProgressInterval,
		Timeout:            cfg.DispatchTimeout,
		CircuitBreaker:     cfg.CircuitBreaker,
		DryRun:             cfg.DryRun,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, logger)
	if err != nil {
		return nil, err
	}

	extractor := records.NewStatusExtractor(cfg.StatusMatch)
	statusFilter := records.NewFilter(cfg.StatusField, cfg.TargetStatus, cfg.StatusMatch, logger)
	builder := records.NewBuilder(records.BuilderOptions{
		DomainField:       cfg.DomainField,
		StatusField:       cfg.StatusField,
		EmailField:        cfg.EmailField,
		OrganizationField: cfg.OrganizationField,
		Strict:            cfg.StrictDomains,
		Extractor:         extractor,
	}, logger)

	return NewEngine(Components{
		Source:  source,
		Filter:  statusFilter,
		Builder: builder,
		Sink:    sink,
		Store:   store,
		Locker:  locker,
		LockKey: cfg.RunLockKey(),
		LockTTL: cfg.RunLockTTL,
		Mode:    cfg.DispatchMode,
		DryRun:  cfg.DryRun,
	}, logger), nil
}
