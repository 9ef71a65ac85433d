package parser

import "fmt"

// UnknownBackendError is returned by ForBackend for an unregistered CMS
// type. Callers treat it as a task-level failure, never a job failure.
type UnknownBackendError struct {
	Backend string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("no parser registered for backend %q", e.Backend)
}

type configParser struct {
	backend string
	cfg     Config
}

func (p *configParser) Backend() string { return p.backend }

func (p *configParser) Parse(content string) ([]Row, error) {
	rows := ParseWithConfig(content, p.cfg)
	return rows, nil
}

var dealerComConfig = Config{
	StatusRules: []StatusRule{
		{"IN TRANSIT", "in_transit"},
		{"IN-TRANSIT", "in_transit"},
		{"IN PRODUCTION", "in_transit"},
		{"COMING SOON", "in_transit"},
		{"SOLD", "sold"},
		{"AVAILABLE", "available"},
		{"IN STOCK", "available"},
		{"ON LOT", "available"},
	},
	PriceKeywords: []PriceKeyword{
		{"internet price", 1},
		{"dealer price", 1},
		{"sale price", 2},
		{"online price", 2},
		{"price", 4},
	},
}

var dealerInspireConfig = Config{
	StatusRules: []StatusRule{
		{"IN TRANSIT", "in_transit"},
		{"IN-TRANSIT", "in_transit"},
		{"COMING SOON", "in_transit"},
		{"SOLD", "sold"},
		{"AVAILABLE", "available"},
		{"IN STOCK", "available"},
	},
	PriceKeywords: []PriceKeyword{
		{"sale price", 1},
		{"our price", 1},
		{"internet price", 2},
		{"special price", 2},
		{"market price", 3},
		{"dealer price", 3},
		{"price", 4},
	},
}

var cdkConfig = Config{
	StatusRules: []StatusRule{
		{"IN TRANSIT", "in_transit"},
		{"IN-TRANSIT", "in_transit"},
		{"IN ROUTE", "in_transit"},
		{"ARRIVING SOON", "in_transit"},
		{"SOLD", "sold"},
		{"AVAILABLE", "available"},
		{"IN STOCK", "available"},
		{"ON ORDER", "in_transit"},
	},
	PriceKeywords: []PriceKeyword{
		{"web price", 1},
		{"sale price", 1},
		{"dealer price", 2},
		{"your price", 2},
		{"price", 4},
	},
}

var genericConfig = Config{
	StatusRules: []StatusRule{
		{"IN TRANSIT", "in_transit"},
		{"TRANSIT", "in_transit"},
		{"IN STOCK", "available"},
		{"AVAILABLE", "available"},
		{"BUILD PHASE", "build_phase"},
		{"PENDING SALE", "pending"},
		{"SOLD", "sold"},
	},
	PriceKeywords: []PriceKeyword{
		{"advertised price", 1},
		{"sale price", 1},
		{"internet price", 1},
		{"final price", 1},
		{"tsrp", 2},
		{"price", 3},
	},
}

// registry maps normalized CMS names to adapters. Typesense-backed sites
// (SmartPath, DealerOn, DealerSocket, Team Velocity) render enough of their
// inventory into the captured markup for the generic scanner to work.
var registry = map[string]Parser{
	"DEALER_COM":     &configParser{backend: "DEALER_COM", cfg: dealerComConfig},
	"DEALER_INSPIRE": &configParser{backend: "DEALER_INSPIRE", cfg: dealerInspireConfig},
	"CDK":            &configParser{backend: "CDK", cfg: cdkConfig},
	"CDK_GLOBAL":     &configParser{backend: "CDK_GLOBAL", cfg: cdkConfig},
	"DEALERON":       &configParser{backend: "DEALERON", cfg: genericConfig},
	"DEALER_SOCKET":  &configParser{backend: "DEALER_SOCKET", cfg: genericConfig},
	"SMARTPATH":      &configParser{backend: "SMARTPATH", cfg: genericConfig},
	"TEAM_VELOCITY":  &configParser{backend: "TEAM_VELOCITY", cfg: genericConfig},
	"DEALER_ALCHEMY": &configParser{backend: "DEALER_ALCHEMY", cfg: genericConfig},
	"DEALER_VENOM":   &configParser{backend: "DEALER_VENOM", cfg: genericConfig},
	"FOX_DEALER":     &configParser{backend: "FOX_DEALER", cfg: genericConfig},
}

// ForBackend resolves the adapter for a dealer's CMS backend type.
func ForBackend(backendType string) (Parser, error) {
	p, ok := registry[backendType]
	if !ok {
		return nil, &UnknownBackendError{Backend: backendType}
	}
	return p, nil
}

// Backends lists the registered CMS backend names.
func Backends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
