package orchestrator

import "leadgen/plan"

// Estimate is the advisory call budget of a plan. Actual counts come from
// the searchers and may be lower because of early-exit pagination and maps
// supplementation.
type Estimate struct {
	Queries   int `json:"queries"`
	Cities    int `json:"cities"`
	Pages     int `json:"pages"`
	WebCalls  int `json:"web_calls"`
	MapsCalls int `json:"maps_calls"`
	Total     int `json:"total_calls"`
}

func EstimateCalls(p *plan.Plan) Estimate {
	e := Estimate{
		Queries: len(p.SelectedQueries()),
		Cities:  p.CityCount(),
		Pages:   p.PagesPerQuery,
	}
	perSource := e.Queries * e.Cities * e.Pages
	if p.SearchType.Web() {
		e.WebCalls = perSource
	}
	if p.SearchType.Maps() {
		e.MapsCalls = perSource
	}
	e.Total = e.WebCalls + e.MapsCalls
	return e
}
