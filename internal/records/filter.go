package records

import (
	"sort"

	"baserow-bridge/internal/baserow"
	"baserow-bridge/internal/common/logging"
)

// Filter keeps rows whose status field matches a target.
type Filter struct {
	Field     string
	Target    string
	Extractor StatusExtractor
	logger    logging.Logger
}

// FilterResult is the outcome of Filter.Apply.
type FilterResult struct {
	Rows []baserow.Row
	// Distribution counts every observed status, keyed by canonical form.
	// Rows without a usable status are counted under "<none>".
	Distribution map[string]int
}

// NoStatus is the Distribution key for rows without a usable status.
const NoStatus = "<none>"

// NewFilter creates a Filter comparing field against target in the given
// match mode.
func NewFilter(field, target, mode string, logger logging.Logger) *Filter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Filter{
		Field:     field,
		Target:    target,
		Extractor: NewStatusExtractor(mode),
		logger:    logger.WithFields(logging.String("component", "filter")),
	}
}

// Matches reports whether row carries the target status.
func (f *Filter) Matches(row baserow.Row) bool {
	value, ok := f.Extractor.Extract(row[f.Field])
	return ok && Canonical(value) == f.Target
}

// Apply returns the matching rows in input order.
func (f *Filter) Apply(rows []baserow.Row) FilterResult {
	result := FilterResult{
		Rows:         make([]baserow.Row, 0, len(rows)),
		Distribution: make(map[string]int),
	}

	for _, row := range rows {
		value, ok := f.Extractor.Extract(row[f.Field])
		if !ok {
			result.Distribution[NoStatus]++
			continue
		}
		key := Canonical(value)
		result.Distribution[key]++
		if key == f.Target {
			result.Rows = append(result.Rows, row)
		}
	}

	keys := make([]string, 0, len(result.Distribution))
	for k := range result.Distribution {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.logger.Debug("Status distribution",
			logging.String("status", k),
			logging.Int("rows", result.Distribution[k]),
		)
	}

	f.logger.Info("Filtered rows",
		logging.String("target", f.Target),
		logging.Int("rows", len(rows)),
		logging.Int("matched", len(result.Rows)),
	)
	return result
}
