// Package plan holds the campaign plan produced by the external planner:
// queries with per-country translations and target cities per country.
package plan

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoQueries         = errors.New("plan has no queries")
	ErrNoSelectedQueries = errors.New("plan has no selected queries")
	ErrNoCountries       = errors.New("plan has no countries")
	ErrNoCities          = errors.New("country has no cities")
	ErrNoSourceSelected  = errors.New("search_type must select web, maps or both")
	ErrInvalidPages      = errors.New("pages_per_query must be between 1 and 10")
	ErrInvalidPriority   = errors.New("priority must be one of: HIGH, MEDIUM, LOW")
	ErrEmptyTemplate     = errors.New("query template is required")
)

const MaxPagesPerQuery = 10

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type SearchType string

const (
	SearchWeb  SearchType = "web"
	SearchMaps SearchType = "maps"
	SearchBoth SearchType = "both"
)

func (t SearchType) Web() bool {
	return t == SearchWeb || t == SearchBoth
}

func (t SearchType) Maps() bool {
	return t == SearchMaps || t == SearchBoth
}

type Query struct {
	Template     string            `yaml:"template" json:"template"`
	Priority     Priority          `yaml:"priority" json:"priority"`
	Translations map[string]string `yaml:"translations" json:"translations,omitempty"`
	// Selected defaults to true when omitted
	Selected *bool `yaml:"selected" json:"selected,omitempty"`
}

func (q Query) IsSelected() bool {
	return q.Selected == nil || *q.Selected
}

// Text returns the query for a country, falling back to the template
func (q Query) Text(country string) string {
	for code, text := range q.Translations {
		if strings.EqualFold(code, country) && strings.TrimSpace(text) != "" {
			return text
		}
	}
	return q.Template
}

type Country struct {
	Code     string   `yaml:"code" json:"code"`
	Language string   `yaml:"language" json:"language"`
	Cities   []string `yaml:"cities" json:"cities"`
}

// Countries keeps the document order of a code -> country mapping. A plain
// list of countries with explicit codes is accepted too.
type Countries []Country

func (c *Countries) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []Country
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	case yaml.MappingNode:
		out := make(Countries, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var country Country
			if err := node.Content[i+1].Decode(&country); err != nil {
				return fmt.Errorf("country %s: %w", node.Content[i].Value, err)
			}
			country.Code = node.Content[i].Value
			out = append(out, country)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("countries must be a mapping or a list, line %d", node.Line)
	}
}

type Plan struct {
	Sector         string     `yaml:"sector" json:"sector"`
	Keyword        string     `yaml:"keyword" json:"keyword,omitempty"`
	Notes          string     `yaml:"notes" json:"notes,omitempty"`
	SearchType     SearchType `yaml:"search_type" json:"search_type"`
	PagesPerQuery  int        `yaml:"pages_per_query" json:"pages_per_query"`
	SupplementMaps bool       `yaml:"supplement_maps" json:"supplement_maps"`
	Queries        []Query    `yaml:"queries" json:"queries"`
	Countries      Countries  `yaml:"countries" json:"countries"`
}

// Load reads a plan from a YAML or JSON file
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a plan. JSON input is accepted since it is
// valid YAML.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) normalize() {
	p.SearchType = SearchType(strings.ToLower(strings.TrimSpace(string(p.SearchType))))
	if p.PagesPerQuery == 0 {
		p.PagesPerQuery = 1
	}
	for i := range p.Queries {
		q := &p.Queries[i]
		q.Template = strings.TrimSpace(q.Template)
		q.Priority = Priority(strings.ToUpper(strings.TrimSpace(string(q.Priority))))
		if q.Priority == "" {
			q.Priority = PriorityMedium
		}
	}
	for i := range p.Countries {
		c := &p.Countries[i]
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		c.Language = strings.ToLower(strings.TrimSpace(c.Language))
		cities := c.Cities[:0]
		for _, city := range c.Cities {
			if city = strings.TrimSpace(city); city != "" {
				cities = append(cities, city)
			}
		}
		c.Cities = cities
	}
}

func (p *Plan) Validate() error {
	if !p.SearchType.Web() && !p.SearchType.Maps() {
		return ErrNoSourceSelected
	}
	if p.PagesPerQuery < 1 || p.PagesPerQuery > MaxPagesPerQuery {
		return ErrInvalidPages
	}
	if len(p.Queries) == 0 {
		return ErrNoQueries
	}
	for i, q := range p.Queries {
		if q.Template == "" {
			return fmt.Errorf("query %d: %w", i+1, ErrEmptyTemplate)
		}
		switch q.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
		default:
			return fmt.Errorf("query %q: %w", q.Template, ErrInvalidPriority)
		}
	}
	if len(p.SelectedQueries()) == 0 {
		return ErrNoSelectedQueries
	}
	if len(p.Countries) == 0 {
		return ErrNoCountries
	}
	for _, c := range p.Countries {
		if len(c.Cities) == 0 {
			return fmt.Errorf("%s: %w", c.Code, ErrNoCities)
		}
	}
	return nil
}

func (p *Plan) SelectedQueries() []Query {
	var out []Query
	for _, q := range p.Queries {
		if q.IsSelected() {
			out = append(out, q)
		}
	}
	return out
}

func (p *Plan) CityCount() int {
	n := 0
	for _, c := range p.Countries {
		n += len(c.Cities)
	}
	return n
}

func (p *Plan) CountryCodes() []string {
	codes := make([]string, len(p.Countries))
	for i, c := range p.Countries {
		codes[i] = c.Code
	}
	return codes
}

// Templates returns the selected query templates in plan order
func (p *Plan) Templates() []string {
	selected := p.SelectedQueries()
	out := make([]string, len(selected))
	for i, q := range selected {
		out[i] = q.Template
	}
	return out
}
