package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const samplePlan = `
sector: solar installers
search_type: Both
pages_per_query: 2
supplement_maps: true
queries:
  - template: solar panel installer
    priority: high
    translations:
      de: Solaranlagen Installateur
      fr: installateur panneaux solaires
  - template: solar inverter supplier
  - template: ignored
    selected: false
countries:
  fr:
    language: FR
    cities: [Paris, " Lyon ", ""]
  de:
    language: de
    cities: [Berlin]
  at:
    language: de
    cities: [Wien]
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	codes := p.CountryCodes()
	if len(codes) != 3 || codes[0] != "FR" || codes[1] != "DE" || codes[2] != "AT" {
		t.Errorf("expected document order FR, DE, AT, got %v", codes)
	}
	if p.SearchType != SearchBoth || !p.SearchType.Web() || !p.SearchType.Maps() {
		t.Errorf("unexpected search type %q", p.SearchType)
	}
	if p.CityCount() != 4 {
		t.Errorf("expected 4 cities, got %d", p.CityCount())
	}
	if p.Countries[0].Cities[1] != "Lyon" || p.Countries[0].Language != "fr" {
		t.Errorf("unexpected country: %+v", p.Countries[0])
	}

	selected := p.SelectedQueries()
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected queries, got %d", len(selected))
	}
	if selected[0].Priority != PriorityHigh || selected[1].Priority != PriorityMedium {
		t.Errorf("unexpected priorities: %q %q", selected[0].Priority, selected[1].Priority)
	}
	if got := selected[0].Text("DE"); got != "Solaranlagen Installateur" {
		t.Errorf("unexpected translation %q", got)
	}
	if got := selected[0].Text("AT"); got != "solar panel installer" {
		t.Errorf("expected template fallback, got %q", got)
	}
}

func TestParse_JSON(t *testing.T) {
	data := `{"search_type":"web","queries":[{"template":"roofers"}],"countries":[{"code":"gb","language":"en","cities":["Leeds"]}]}`

	p, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PagesPerQuery != 1 || p.Countries[0].Code != "GB" {
		t.Errorf("unexpected plan: %+v", p)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name string
		plan string
		want error
	}{
		{"NoSource", `{"search_type":"none","queries":[{"template":"a"}],"countries":{"us":{"cities":["X"]}}}`, ErrNoSourceSelected},
		{"MissingSource", `{"queries":[{"template":"a"}],"countries":{"us":{"cities":["X"]}}}`, ErrNoSourceSelected},
		{"TooManyPages", `{"search_type":"web","pages_per_query":11,"queries":[{"template":"a"}],"countries":{"us":{"cities":["X"]}}}`, ErrInvalidPages},
		{"NoQueries", `{"search_type":"web","countries":{"us":{"cities":["X"]}}}`, ErrNoQueries},
		{"NoneSelected", `{"search_type":"web","queries":[{"template":"a","selected":false}],"countries":{"us":{"cities":["X"]}}}`, ErrNoSelectedQueries},
		{"BadPriority", `{"search_type":"web","queries":[{"template":"a","priority":"urgent"}],"countries":{"us":{"cities":["X"]}}}`, ErrInvalidPriority},
		{"NoCountries", `{"search_type":"web","queries":[{"template":"a"}]}`, ErrNoCountries},
		{"NoCities", `{"search_type":"maps","queries":[{"template":"a"}],"countries":{"us":{"cities":[]}}}`, ErrNoCities},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.plan))
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Sector != "solar installers" || !p.SupplementMaps {
		t.Errorf("unexpected plan: %+v", p)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestLoad_ExamplePlan(t *testing.T) {
	p, err := Load(filepath.Join("..", "configs", "plan.example.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CityCount() != 5 || len(p.SelectedQueries()) != 2 || p.Keyword != "packaging" {
		t.Errorf("unexpected plan: %+v", p)
	}
	if got := p.Queries[0].Text("FR"); got != "fabricant d'emballages" {
		t.Errorf("unexpected translation %q", got)
	}
}
