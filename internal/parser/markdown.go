package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	vinRE   = regexp.MustCompile(`(?i)\b[A-HJ-NPR-Z0-9]{17}\b`)
	priceRE = regexp.MustCompile(`\$\s*([0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{2})?)`)
	urlRE   = regexp.MustCompile(`(?i)https?://[^\s"')>]+`)
	tagRE   = regexp.MustCompile(`<[^>]+>`)

	defaultStockPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:stock\s*(?:#|number|no\.?)\s*[:\-]?\s*)([A-Z0-9-]+)`),
	}
	defaultURLKeywords = []string{"inventory", "vehicle", "vdp"}
)

// StatusRule maps an upper-case page token to a normalized listing status.
// Rules are checked in order; the first match wins.
type StatusRule struct {
	Token  string
	Status string
}

// PriceKeyword ranks a price label. Lower priority is more trusted; a bare
// dollar amount with no label gets priority 5.
type PriceKeyword struct {
	Keyword  string
	Priority int
}

// Config drives the generic line scanner. Backends differ only in their
// status vocabulary and price-label priorities.
type Config struct {
	StatusRules   []StatusRule
	PriceKeywords []PriceKeyword
	URLKeywords   []string
	StockPatterns []*regexp.Regexp
}

type scanRecord struct {
	row       Row
	priceRank int
}

// ParseWithConfig scans markdown or HTML line by line. Each VIN opens a
// record; subsequent lines attach prices, stock numbers, statuses, and VDP
// URLs to the most recent VIN until another one appears.
func ParseWithConfig(content string, cfg Config) []Row {
	cleaned := tagRE.ReplaceAllString(content, " ")
	if strings.TrimSpace(cleaned) == "" {
		return nil
	}
	urlKeywords := cfg.URLKeywords
	if len(urlKeywords) == 0 {
		urlKeywords = defaultURLKeywords
	}
	stockPatterns := cfg.StockPatterns
	if len(stockPatterns) == 0 {
		stockPatterns = defaultStockPatterns
	}

	records := map[string]*scanRecord{}
	var order []string
	var current *scanRecord

	for _, rawLine := range strings.Split(cleaned, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if loc := vinRE.FindStringIndex(line); loc != nil {
			vin := strings.ToUpper(line[loc[0]:loc[1]])
			rec, ok := records[vin]
			if !ok {
				rec = &scanRecord{row: Row{VIN: vin}, priceRank: math.MaxInt}
				records[vin] = rec
				order = append(order, vin)
			}
			current = rec
			remainder := strings.TrimSpace(line[:loc[0]] + " " + line[loc[1]:])
			if remainder != "" {
				applyLine(rec, remainder, cfg, urlKeywords, stockPatterns)
			}
			continue
		}

		if current == nil {
			continue
		}
		applyLine(current, line, cfg, urlKeywords, stockPatterns)
	}

	rows := make([]Row, 0, len(order))
	for _, vin := range order {
		rows = append(rows, records[vin].row)
	}
	return rows
}

func applyLine(rec *scanRecord, line string, cfg Config, urlKeywords []string, stockPatterns []*regexp.Regexp) {
	lower := strings.ToLower(line)

	if price, ok := parsePrice(line); ok {
		if strings.Contains(lower, "msrp") || strings.Contains(lower, "sticker price") {
			if rec.row.MSRP == nil {
				rec.row.MSRP = &price
			}
		} else {
			rank := -1
			for _, kw := range cfg.PriceKeywords {
				if strings.Contains(lower, kw.Keyword) {
					rank = kw.Priority
					break
				}
			}
			if rank < 0 && strings.Contains(line, "$") {
				rank = 5
			}
			if rank >= 0 {
				better := rank < rec.priceRank
				tieLower := rank == rec.priceRank &&
					(rec.row.AdvertisedPrice == nil || price.LessThan(*rec.row.AdvertisedPrice))
				if better || tieLower {
					rec.row.AdvertisedPrice = &price
					rec.priceRank = rank
				}
			}
		}
	}

	if rec.row.StockNumber == nil {
		for _, pattern := range stockPatterns {
			if m := pattern.FindStringSubmatch(line); m != nil {
				stock := strings.TrimSpace(m[1])
				rec.row.StockNumber = &stock
				break
			}
		}
	}

	upper := strings.ToUpper(line)
	for _, rule := range cfg.StatusRules {
		if strings.Contains(upper, rule.Token) {
			status := rule.Status
			rec.row.Status = &status
			break
		}
	}

	if rec.row.VDPURL == nil {
		if u := extractVDPURL(line, rec.row.VIN, urlKeywords); u != "" {
			rec.row.VDPURL = &u
		}
	}
}

func parsePrice(line string) (decimal.Decimal, bool) {
	m := priceRE.FindStringSubmatch(line)
	if m == nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func extractVDPURL(line, vin string, keywords []string) string {
	lowerVIN := strings.ToLower(vin)
	for _, u := range urlRE.FindAllString(line, -1) {
		lowered := strings.ToLower(u)
		if strings.Contains(lowered, lowerVIN) {
			return u
		}
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				return u
			}
		}
	}
	return ""
}
