package source

import "time"

// Kind selects the scanning strategy for a source.
type Kind string

const (
	KindHTML Kind = "html"
	KindFeed Kind = "feed"
)

// Rules maps document regions to article fields for html sources.
// Selectors are goquery/CSS expressions evaluated relative to each item.
type Rules struct {
	Item  string
	Title string
	Body  string
	Link  string
	Date  string

	// LinkAttr names the attribute carrying the link, default "href".
	LinkAttr string

	// DateLayouts are tried in order when parsing the date text.
	DateLayouts []string
}

// Politeness bounds how aggressively one origin may be fetched.
type Politeness struct {
	// MinInterval is the minimum delay between consecutive request starts
	// against the same origin.
	MinInterval time.Duration

	// Timeout bounds each individual request.
	Timeout time.Duration

	// MaxRetries is how many times a transient failure is retried.
	MaxRetries int
}

// Descriptor describes one content source. Immutable once registered.
type Descriptor struct {
	ID       string
	Name     string
	Kind     Kind
	Endpoint string
	Language string
	Country  string

	Rules      Rules
	Politeness Politeness

	// MaxPages and PageParam drive pagination for html sources; a zero
	// MaxPages means the endpoint is fetched once.
	MaxPages  int
	PageParam string
}

// Filter narrows a registry listing. Zero value matches everything.
type Filter struct {
	Language string
	Country  string
	Kind     Kind
	IDs      []string
}

func (f Filter) matches(d Descriptor) bool {
	if f.Language != "" && f.Language != d.Language {
		return false
	}
	if f.Country != "" && f.Country != d.Country {
		return false
	}
	if f.Kind != "" && f.Kind != d.Kind {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == d.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
