package records

import (
	"strings"

	"baserow-bridge/internal/baserow"
	"baserow-bridge/internal/common/logging"
)

// maxLoggedRejections bounds how many invalid domains are logged per build.
const maxLoggedRejections = 5

// BuilderOptions names the row fields a Builder reads.
type BuilderOptions struct {
	DomainField       string
	StatusField       string
	EmailField        string
	OrganizationField string
	Strict            bool
	Extractor         StatusExtractor
}

// BuildResult holds the records and the drop counts of one build.
type BuildResult struct {
	Records        []Record
	EmptyDomains   int
	InvalidDomains int
}

// Builder converts filtered rows into Records.
type Builder struct {
	opts   BuilderOptions
	logger logging.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(opts BuilderOptions, logger logging.Logger) *Builder {
	if opts.Extractor.Key == "" {
		opts.Extractor = NewStatusExtractor(MatchValue)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Builder{
		opts:   opts,
		logger: logger.WithFields(logging.String("component", "builder")),
	}
}

// Build emits a Record for every row with a valid domain, keeping input
// order. Rows with a missing, non-string or blank domain count as empty;
// rows failing ValidateDomain count as invalid.
func (b *Builder) Build(rows []baserow.Row) BuildResult {
	result := BuildResult{Records: make([]Record, 0, len(rows))}

	for _, row := range rows {
		raw, ok := row[b.opts.DomainField].(string)
		if !ok || strings.TrimSpace(raw) == "" {
			result.EmptyDomains++
			continue
		}

		if !ValidateDomain(raw, b.opts.Strict) {
			result.InvalidDomains++
			if result.InvalidDomains <= maxLoggedRejections {
				b.logger.Warn("Rejected invalid domain",
					logging.String("domain", raw),
					logging.Any("record_id", row.ID()),
				)
			}
			continue
		}

		result.Records = append(result.Records, b.record(row, raw))
	}

	b.logger.Info("Built records",
		logging.Int("records", len(result.Records)),
		logging.Int("empty_domains", result.EmptyDomains),
		logging.Int("invalid_domains", result.InvalidDomains),
	)
	return result
}

func (b *Builder) record(row baserow.Row, domain string) Record {
	rec := Record{
		Domain:      NormalizeDomain(domain),
		RecordID:    row.ID(),
		BaserowData: row,
	}
	if status, ok := b.opts.Extractor.Extract(row[b.opts.StatusField]); ok {
		rec.Status = status
	}
	rec.Email = optionalString(row, b.opts.EmailField)
	rec.OrganizationName = optionalString(row, b.opts.OrganizationField)
	return rec
}

func optionalString(row baserow.Row, field string) string {
	if field == "" {
		return ""
	}
	s, ok := row[field].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
