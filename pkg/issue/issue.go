// pkg/issue/issue.go
package issue

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category classifies problems found while converting an inventory
type Category int

const (
	// Categories with increasing severity
	CategoryNone Category = iota
	CategoryWarning
	CategoryUnresolvedReference
	CategoryMalformedRow
	CategoryInventoryCheck
	CategoryAmbiguousKey
	CategoryDestructiveWrite
	CategoryIO
)

// String returns a string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "None"
	case CategoryWarning:
		return "Warning"
	case CategoryUnresolvedReference:
		return "UnresolvedReference"
	case CategoryMalformedRow:
		return "MalformedRow"
	case CategoryInventoryCheck:
		return "InventoryCheck"
	case CategoryAmbiguousKey:
		return "AmbiguousKey"
	case CategoryDestructiveWrite:
		return "DestructiveWrite"
	case CategoryIO:
		return "IO"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// MarshalText lets categories key JSON maps by name
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Fatal reports whether a problem of this category stops a conversion
func (c Category) Fatal() bool {
	return c >= CategoryAmbiguousKey
}

func (c Category) level() zapcore.Level {
	switch {
	case c == CategoryNone:
		return zap.DebugLevel
	case c.Fatal():
		return zap.ErrorLevel
	case c == CategoryUnresolvedReference:
		return zap.InfoLevel
	default:
		return zap.WarnLevel
	}
}

// Record is one problem observed during a conversion
type Record struct {
	Category  Category
	Source    string // File or database the problem came from
	Dataset   string
	Line      int
	Field     string
	Value     interface{}
	Err       error
	Message   string
	Timestamp time.Time
}

// NewRecord creates a record with the current timestamp
func NewRecord(err error, category Category) Record {
	r := Record{
		Category:  category,
		Err:       err,
		Timestamp: time.Now(),
	}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// Newf creates a record from a formatted message
func Newf(category Category, format string, args ...interface{}) Record {
	return NewRecord(fmt.Errorf(format, args...), category)
}

// WithSource adds the originating file or database
func (r Record) WithSource(source string) Record {
	r.Source = source
	return r
}

// WithDataset adds the dataset the problem belongs to
func (r Record) WithDataset(name string) Record {
	r.Dataset = name
	return r
}

// WithLine adds the input line number
func (r Record) WithLine(line int) Record {
	r.Line = line
	return r
}

// WithField adds the offending field and its value
func (r Record) WithField(field string, value interface{}) Record {
	r.Field = field
	r.Value = value
	return r
}

// String returns a formatted message
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Source != "" {
		sb.WriteString(r.Source)
		if r.Line > 0 {
			sb.WriteString(fmt.Sprintf(":%d", r.Line))
		}
		sb.WriteString(" ")
	} else if r.Line > 0 {
		sb.WriteString(fmt.Sprintf("Line: %d ", r.Line))
	}

	if r.Dataset != "" {
		sb.WriteString(fmt.Sprintf("Dataset: %s ", r.Dataset))
	}

	if r.Field != "" {
		sb.WriteString(fmt.Sprintf("Field: %s ", r.Field))
		if r.Value != nil {
			sb.WriteString(fmt.Sprintf("Value: %v ", r.Value))
		}
	}

	sb.WriteString(r.Message)
	return strings.TrimSpace(sb.String())
}

// Tracker collects problems during a conversion, keeping counts per category
// and a few sample records of each
type Tracker struct {
	logger     *zap.Logger
	counts     map[Category]int
	samples    map[Category][]Record
	datasets   map[string]int
	mu         sync.Mutex
	maxSamples int
}

// NewTracker creates a new tracker
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		logger:     logger,
		counts:     make(map[Category]int),
		samples:    make(map[Category][]Record),
		datasets:   make(map[string]int),
		maxSamples: 5,
	}
}

// WithMaxSamples sets how many records are kept per category
func (t *Tracker) WithMaxSamples(n int) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxSamples = n
	return t
}

// Record saves a problem occurrence and logs it
func (t *Tracker) Record(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[r.Category]++

	if samples := t.samples[r.Category]; len(samples) < t.maxSamples {
		t.samples[r.Category] = append(samples, r)
	}

	if r.Dataset != "" {
		t.datasets[r.Dataset]++
	}

	t.logger.Log(r.Category.level(), "Conversion issue",
		zap.String("category", r.Category.String()),
		zap.String("source", r.Source),
		zap.String("dataset", r.Dataset),
		zap.Int("line", r.Line),
		zap.String("field", r.Field),
		zap.String("error", r.Message))
}

// Summary returns the count of problems per category
func (t *Tracker) Summary() map[Category]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := make(map[Category]int, len(t.counts))
	for c, n := range t.counts {
		summary[c] = n
	}
	return summary
}

// Count returns the number of problems recorded in a category
func (t *Tracker) Count(c Category) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[c]
}

// Total returns the number of problems recorded
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Samples returns copies of the sample records per category
func (t *Tracker) Samples() map[Category][]Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := make(map[Category][]Record, len(t.samples))
	for c, records := range t.samples {
		samples[c] = append([]Record(nil), records...)
	}
	return samples
}

// DatasetCounts returns the number of problems per dataset
func (t *Tracker) DatasetCounts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int, len(t.datasets))
	for d, n := range t.datasets {
		counts[d] = n
	}
	return counts
}

// HasFatal reports whether any recorded problem stops the conversion
func (t *Tracker) HasFatal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c, n := range t.counts {
		if n > 0 && c.Fatal() {
			return true
		}
	}
	return false
}

// Report renders the counts and samples, most severe category first
func (t *Tracker) Report() string {
	summary := t.Summary()
	if len(summary) == 0 {
		return "No issues recorded.\n"
	}
	samples := t.Samples()

	categories := make([]Category, 0, len(summary))
	for c := range summary {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] > categories[j] })

	var sb strings.Builder
	sb.WriteString("\nIssues\n------\n")
	for _, c := range categories {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", c, summary[c]))
		for _, r := range samples[c] {
			sb.WriteString(fmt.Sprintf("    %s\n", r))
		}
	}
	return sb.String()
}
