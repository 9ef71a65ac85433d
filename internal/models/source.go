package models

// Observation source tags and their trust ranks. Lower rank is more
// authoritative. Every field-level conflict in the reconciler goes through
// RankWins; there is no other comparison site.
const (
	SourceScrapeVDP       = "scrape-vdp"
	SourceScrapeInventory = "scrape-inventory"
	SourceUpload          = "upload"
	SourceImport          = "import"
)

const (
	RankScrapeVDP       = 10
	RankScrapeInventory = 50
	RankUpload          = 80
	RankImport          = 90

	// RankUnset marks a listing field that no source has won yet.
	RankUnset = 100
)

func RankForSource(source string) int {
	switch source {
	case SourceScrapeVDP:
		return RankScrapeVDP
	case SourceScrapeInventory:
		return RankScrapeInventory
	case SourceUpload:
		return RankUpload
	case SourceImport:
		return RankImport
	default:
		return RankUnset
	}
}

// RankWins reports whether an incoming observation may overwrite a field most
// recently set by current. Equal or lower (more trusted) rank always wins.
func RankWins(incoming, current int) bool {
	return incoming <= current
}
