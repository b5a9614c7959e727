package source

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
)

// Registry holds validated source descriptors. Construction validates every
// descriptor; after that the registry is read-only and safe to share.
type Registry struct {
	byID  map[string]Descriptor
	order []string
}

// NewRegistry validates the descriptors and indexes them by ID. A single
// invalid descriptor fails the whole load so misconfiguration is caught at
// startup, never mid-crawl.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("source %q: %w", d.ID, err)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("source %q: duplicate id", d.ID)
		}
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// List returns descriptors matching the filter, ordered by ID.
func (r *Registry) List(f Filter) []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		if d := r.byID[id]; f.matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the descriptor registered under id.
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("get source %q: %w", id, domain.ErrSourceNotFound)
	}
	return d, nil
}

// Len reports how many sources are registered.
func (r *Registry) Len() int {
	return len(r.byID)
}

func validate(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("missing id")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint %q: %w", d.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute http(s) URL", d.Endpoint)
	}

	switch d.Kind {
	case KindFeed:
		// Feed extraction needs no selector rules.
	case KindHTML:
		if err := validateRules(d.Rules); err != nil {
			return err
		}
		if d.MaxPages > 1 && d.PageParam == "" {
			return fmt.Errorf("maxPages %d requires a pageParam", d.MaxPages)
		}
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}

	if d.Politeness.MinInterval < 0 {
		return fmt.Errorf("negative politeness interval")
	}
	if d.Politeness.Timeout < 0 {
		return fmt.Errorf("negative politeness timeout")
	}
	if d.Politeness.MaxRetries < 0 {
		return fmt.Errorf("negative retry count")
	}
	return nil
}

func validateRules(rules Rules) error {
	required := []struct {
		name  string
		value string
	}{
		{"item", rules.Item},
		{"title", rules.Title},
		{"body", rules.Body},
		{"link", rules.Link},
		{"date", rules.Date},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("extraction rules: missing %s selector", field.name)
		}
	}
	if len(rules.DateLayouts) == 0 {
		return fmt.Errorf("extraction rules: no date layouts")
	}
	return nil
}
