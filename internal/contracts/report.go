package contracts

import "strings"

// Slot identifies one of the three sub-reports of a Report
type Slot int

const (
	SlotDCF Slot = iota
	SlotConsensus
	SlotSummary
)

// AllSlots lists slots in their canonical fetch/await order
var AllSlots = []Slot{SlotDCF, SlotConsensus, SlotSummary}

func (s Slot) String() string {
	switch s {
	case SlotDCF:
		return "dcf"
	case SlotConsensus:
		return "consensus"
	case SlotSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// DiscountedCashFlow is the fair value vs. market price on a given date
type DiscountedCashFlow struct {
	Ticker      string  `json:"-"`
	Date        string  `json:"date"`
	FairValue   float64 `json:"dcf"`
	MarketPrice float64 `json:"stockPrice"`
}

// PriceTargetConsensus aggregates analyst price targets
type PriceTargetConsensus struct {
	Ticker    string  `json:"-"`
	High      float64 `json:"targetHigh"`
	Low       float64 `json:"targetLow"`
	Consensus float64 `json:"targetConsensus"`
	Median    float64 `json:"targetMedian"`
}

// PriceTargetSummary holds recent-period analyst counts and averages
type PriceTargetSummary struct {
	Ticker           string  `json:"-"`
	LastMonthCount   int     `json:"lastMonth"`
	LastMonthAvg     float64 `json:"lastMonthAvgPriceTarget"`
	LastQuarterCount int     `json:"lastQuarter"`
	LastQuarterAvg   float64 `json:"lastQuarterAvgPriceTarget"`
}

// Report is the valuation of one ticker assembled from up to three sub-reports.
// Any slot may be nil. Cause threads a fetch failure next to whatever was found.
// ⭐ SSOT: 캐시/DB/API 모든 계층이 주고받는 단일 값 타입
type Report struct {
	Ticker    string
	DCF       *DiscountedCashFlow
	Consensus *PriceTargetConsensus
	Summary   *PriceTargetSummary
	Cause     error
}

// NewReport builds a Report; the ticker is normalised to upper case
func NewReport(ticker string, dcf *DiscountedCashFlow, consensus *PriceTargetConsensus, summary *PriceTargetSummary) *Report {
	return &Report{
		Ticker:    NormalizeTicker(ticker),
		DCF:       dcf,
		Consensus: consensus,
		Summary:   summary,
	}
}

// NormalizeTicker trims and upper-cases a ticker
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// PresentCount returns the number of non-nil slots (0..3). Nil-safe.
func (r *Report) PresentCount() int {
	if r == nil {
		return 0
	}
	n := 0
	if r.DCF != nil {
		n++
	}
	if r.Consensus != nil {
		n++
	}
	if r.Summary != nil {
		n++
	}
	return n
}

// IsIncomplete reports whether any slot is missing. A nil Report is incomplete.
func (r *Report) IsIncomplete() bool {
	return r.PresentCount() < len(AllSlots)
}

// Has reports whether the given slot is filled
func (r *Report) Has(s Slot) bool {
	if r == nil {
		return false
	}
	switch s {
	case SlotDCF:
		return r.DCF != nil
	case SlotConsensus:
		return r.Consensus != nil
	case SlotSummary:
		return r.Summary != nil
	}
	return false
}

// Missing lists the empty slots in canonical order
func (r *Report) Missing() []Slot {
	var missing []Slot
	for _, s := range AllSlots {
		if !r.Has(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

// Merge returns a new Report where each slot comes from r if filled there,
// otherwise from other. Filled slots are never replaced, so merging is
// commutative for disjoint inputs and idempotent. The Cause of r wins
// unless it is nil. Either side may be nil.
func (r *Report) Merge(other *Report) *Report {
	if r == nil && other == nil {
		return nil
	}
	if r == nil {
		return other.Clone()
	}

	merged := r.Clone()
	if other == nil {
		return merged
	}
	if merged.DCF == nil {
		merged.DCF = other.DCF
	}
	if merged.Consensus == nil {
		merged.Consensus = other.Consensus
	}
	if merged.Summary == nil {
		merged.Summary = other.Summary
	}
	if merged.Cause == nil {
		merged.Cause = other.Cause
	}
	return merged
}

// Clone returns a shallow copy; sub-reports are immutable values once built
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
