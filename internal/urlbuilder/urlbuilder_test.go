package urlbuilder

import (
	"errors"
	"testing"

	"dealerwatch/internal/models"
)

func dealer(homepage, template, scope string) models.Dealer {
	return models.Dealer{
		HomepageURL:          homepage,
		InventoryURLTemplate: template,
		TemplateScope:        scope,
	}
}

// Golden snapshot of dealer x model URL pairs. Any registry or template
// change that alters one output is a regression.
func TestBuildGolden(t *testing.T) {
	tests := []struct {
		name   string
		dealer models.Dealer
		model  string
		want   string
	}{
		{
			name:   "absolute slug",
			dealer: dealer("https://d.example.com", "https://d.example.com/srp/{model_slug}", ScopeAbsolute),
			model:  "Land Cruiser",
			want:   "https://d.example.com/srp/land-cruiser",
		},
		{
			name:   "relative slug",
			dealer: dealer("https://shop.example.com", "/inventory/new/{model_slug}", ScopeRelative),
			model:  "Grand Highlander",
			want:   "https://shop.example.com/inventory/new/grand-highlander",
		},
		{
			name:   "relative without leading slash",
			dealer: dealer("https://shop.example.com/", "new-inventory/{model_slug}", ScopeRelative),
			model:  "Tacoma",
			want:   "https://shop.example.com/new-inventory/tacoma",
		},
		{
			name:   "plus encoded query",
			dealer: dealer("https://q.example.com", "https://q.example.com/search?model={model_plus}&condition=new", ScopeAbsolute),
			model:  "Land Cruiser",
			want:   "https://q.example.com/search?model=Land+Cruiser&condition=new",
		},
		{
			name:   "percent encoded query",
			dealer: dealer("https://q.example.com", "/vehicles?q={model_name_encoded}", ScopeRelative),
			model:  "Corolla Cross",
			want:   "https://q.example.com/vehicles?q=Corolla%20Cross",
		},
		{
			name:   "homepage placeholder",
			dealer: dealer("https://h.example.com", "{homepage_url}/srp/{model_slug}/", ScopeAbsolute),
			model:  "RAV4",
			want:   "https://h.example.com/srp/rav4/",
		},
		{
			name:   "numeric leading slug",
			dealer: dealer("https://n.example.com", "/inventory/{model_slug}", ScopeRelative),
			model:  "4Runner",
			want:   "https://n.example.com/inventory/4runner",
		},
		{
			name:   "lowercase mixed slug",
			dealer: dealer("https://b.example.com", "/new/{model_slug}", ScopeRelative),
			model:  "bZ4X",
			want:   "https://b.example.com/new/bz4x",
		},
	}
	for _, tt := range tests {
		got, err := Build(tt.dealer, tt.model)
		if err != nil {
			t.Fatalf("%s: err=%v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}
}

func TestBuildIsPure(t *testing.T) {
	d := dealer("https://d.example.com", "https://d.example.com/srp/{model_slug}", ScopeAbsolute)
	first, err := Build(d, "Camry")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := Build(d, "Camry")
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if got != first {
			t.Fatalf("output drifted: %q vs %q", got, first)
		}
	}
}

func TestBuildUnknownPlaceholder(t *testing.T) {
	d := dealer("https://d.example.com", "/srp/{model_slug}?cy={city_code}", ScopeRelative)
	_, err := Build(d, "Camry")
	var terr *TemplateError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
	if terr.Placeholder != "city_code" {
		t.Fatalf("placeholder=%q want city_code", terr.Placeholder)
	}
}

func TestBuildUnknownModel(t *testing.T) {
	d := dealer("https://d.example.com", "/srp/{model_slug}", ScopeRelative)
	_, err := Build(d, "Edsel")
	var merr *ErrUnknownModel
	if !errors.As(err, &merr) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestValidateTemplate(t *testing.T) {
	if err := ValidateTemplate("/srp/{model_slug}?src={homepage_url}"); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}
	if err := ValidateTemplate("/srp/{model_id}"); err == nil {
		t.Fatalf("expected error for unknown placeholder")
	}
}

func TestDeriveScope(t *testing.T) {
	tests := []struct {
		template string
		want     string
	}{
		{"https://d.example.com/srp/{model_slug}", ScopeAbsolute},
		{"http://d.example.com/srp", ScopeAbsolute},
		{"/inventory/{model_slug}", ScopeRelative},
		{"inventory/{model_slug}", ScopeRelative},
	}
	for _, tt := range tests {
		if got := DeriveScope(tt.template); got != tt.want {
			t.Fatalf("DeriveScope(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Land Cruiser", "land-cruiser"},
		{"Corolla Cross", "corolla-cross"},
		{"GR Supra", "gr-supra"},
		{"  Crown  ", "crown"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Fatalf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
