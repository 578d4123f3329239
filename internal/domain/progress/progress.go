// Package progress translates raw trainer output lines into typed events.
//
// The trainer reports progress only through free-form text, so all the
// matching rules (epoch patterns, loss patterns, tolerance bands) live here
// behind the Parser interface where they are unit-testable and replaceable.
package progress

import (
	"regexp"
	"strconv"
	"strings"

	model "github.com/aquametrics/shrimpd/internal/domain/model"
)

// Default parsing constants.
const (
	defaultMinLoss        = 0.001
	defaultMaxLoss        = 100.0
	defaultEpochTolerance = 10
	minAmbiguousTotal     = 10
)

// Success and error markers emitted by the training worker on exit.
const (
	SuccessMarker = "SUCCESS:"
	ErrorMarker   = "ERROR:"
)

// Line shapes recognized by the parser.
var (
	// "Epoch 5/100" anywhere in the line.
	epochExplicitRe = regexp.MustCompile(`(?i)\bepoch\s+(\d+)/(\d+)`)
	// Bare "5/100" or "5/100:" at the start of the line.
	epochBareRe = regexp.MustCompile(`^\s*(\d+)/(\d+):?(?:\s|$)`)
	// Loss patterns, tried in order; first plausible match wins.
	lossRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bloss\s*=\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)\bloss\s*:\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)\bloss\s+(\d+(?:\.\d+)?)`),
	}
	// "Downloading ... 42%" during model-weight initialization.
	downloadPctRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
)

// Vocabulary of summary/validation lines that also contain "a/b" shapes.
// Such lines are skipped unless they carry an explicit epoch marker.
var skipVocabulary = []string{
	"class",
	"transferred",
	"validating",
	"scanning",
	"cache",
}

// Option applies a configuration option to the LineParser.
type Option func(*LineParser)

// WithLossRange overrides the plausible loss value range.
func WithLossRange(minLoss, maxLoss float64) Option {
	return func(p *LineParser) {
		if minLoss > 0 && maxLoss > minLoss {
			p.minLoss = minLoss
			p.maxLoss = maxLoss
		}
	}
}

// WithEpochTolerance overrides the accepted distance between a reported
// epoch total and the configured one.
func WithEpochTolerance(tolerance int) Option {
	return func(p *LineParser) {
		if tolerance >= 0 {
			p.epochTolerance = tolerance
		}
	}
}

// Parser extracts progress events from one captured output line.
// A line matching no pattern yields no events and is never an error.
type Parser interface {
	Parse(line string) []model.ProgressEvent
}

// LineParser implements Parser for the trainer's text output format.
type LineParser struct {
	totalEpochs    int
	epochTolerance int
	minLoss        float64
	maxLoss        float64
}

// NewLineParser creates a parser for a run configured with totalEpochs.
func NewLineParser(totalEpochs int, opts ...Option) *LineParser {
	p := &LineParser{
		totalEpochs:    totalEpochs,
		epochTolerance: defaultEpochTolerance,
		minLoss:        defaultMinLoss,
		maxLoss:        defaultMaxLoss,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse scans one line and returns zero or more events. Epoch and loss
// readings can coexist on a single line, so both are tried independently.
func (p *LineParser) Parse(line string) []model.ProgressEvent {
	var events []model.ProgressEvent

	if ev, ok := p.parseTerminal(line); ok {
		return []model.ProgressEvent{ev}
	}

	if ev, ok := p.parseEpoch(line); ok {
		events = append(events, ev)
	}

	if ev, ok := p.parseLoss(line); ok {
		events = append(events, ev)
	}

	if ev, ok := p.parseDownload(line); ok {
		events = append(events, ev)
	}

	return events
}

// parseTerminal recognizes the worker's structured exit markers.
func (p *LineParser) parseTerminal(line string) (model.ProgressEvent, bool) {
	trimmed := strings.TrimSpace(line)

	if rest, ok := strings.CutPrefix(trimmed, SuccessMarker); ok {
		return model.ProgressEvent{
			Kind:    model.EventTerminal,
			Message: SuccessMarker + rest,
		}, true
	}

	if rest, ok := strings.CutPrefix(trimmed, ErrorMarker); ok {
		return model.ProgressEvent{
			Kind:    model.EventTerminal,
			Message: ErrorMarker + rest,
		}, true
	}

	return model.ProgressEvent{}, false
}

// parseEpoch recognizes "Epoch n/total" and bare "n/total" lines.
func (p *LineParser) parseEpoch(line string) (model.ProgressEvent, bool) {
	m := epochExplicitRe.FindStringSubmatch(line)
	if m == nil {
		// Summary lines share the bare "a/b" shape with epoch headers, so
		// the bare pattern only applies outside known summary vocabulary.
		if p.looksLikeSummary(line) {
			return model.ProgressEvent{}, false
		}
		m = epochBareRe.FindStringSubmatch(line)
	}
	if m == nil {
		return model.ProgressEvent{}, false
	}

	epoch, err := strconv.Atoi(m[1])
	if err != nil {
		return model.ProgressEvent{}, false
	}
	total, err := strconv.Atoi(m[2])
	if err != nil {
		return model.ProgressEvent{}, false
	}

	if !p.plausibleTotal(total) {
		return model.ProgressEvent{}, false
	}
	if epoch < 1 || epoch > total {
		return model.ProgressEvent{}, false
	}

	return model.ProgressEvent{
		Kind:        model.EventEpoch,
		Epoch:       epoch,
		TotalEpochs: total,
	}, true
}

// plausibleTotal accepts a reported total when it matches the configured
// epoch count, or sits within the tolerance band while itself being large
// enough not to be a validation summary like "1/1".
func (p *LineParser) plausibleTotal(total int) bool {
	if total == p.totalEpochs {
		return true
	}
	diff := total - p.totalEpochs
	if diff < 0 {
		diff = -diff
	}
	return diff <= p.epochTolerance && total > minAmbiguousTotal
}

func (p *LineParser) looksLikeSummary(line string) bool {
	lower := strings.ToLower(line)
	for _, word := range skipVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// parseLoss tries each loss pattern in order and accepts the first match
// whose value lies in the plausible range. Out-of-range values are parsing
// noise, not readings.
func (p *LineParser) parseLoss(line string) (model.ProgressEvent, bool) {
	for _, re := range lossRes {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		loss, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if loss < p.minLoss || loss > p.maxLoss {
			continue
		}
		return model.ProgressEvent{
			Kind: model.EventLoss,
			Loss: loss,
		}, true
	}
	return model.ProgressEvent{}, false
}

// parseDownload recognizes weight-download lines during initialization.
func (p *LineParser) parseDownload(line string) (model.ProgressEvent, bool) {
	if !strings.Contains(strings.ToLower(line), "downloading") {
		return model.ProgressEvent{}, false
	}
	m := downloadPctRe.FindStringSubmatch(line)
	if m == nil {
		return model.ProgressEvent{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil || pct < 0 || pct > 100 {
		return model.ProgressEvent{}, false
	}
	return model.ProgressEvent{
		Kind:    model.EventInitProgress,
		Percent: pct,
	}, true
}
