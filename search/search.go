package search

import (
	"context"
	"errors"
	"fmt"

	"leadgen/repository"
)

const (
	ResultsPerPage = 10
	MaxPages       = 10
)

var (
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrDecodeResponse = errors.New("failed to decode response")
)

// StatusError is returned when the backend answered with a non-2xx status.
// The round trip happened, so it still counts as an API call.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Task is one outbound call of a campaign
type Task struct {
	Query    string
	City     string
	Country  string
	Language string
	Source   repository.Source
	Page     int
}

// Location is the label used for a city in results and maps queries
func (t Task) Location() string {
	return LocationLabel(t.City, t.Country)
}

func LocationLabel(city, country string) string {
	if country == "" {
		return city
	}
	if city == "" {
		return country
	}
	return city + ", " + country
}

type WebRequest struct {
	Query    string `json:"q"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	Num      int    `json:"num,omitempty"`
	Page     int    `json:"page,omitempty"`
}

type WebItem struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type RelatedSearch struct {
	Query string `json:"query"`
}

type WebResponse struct {
	Organic         []WebItem       `json:"organic"`
	Ads             []WebItem       `json:"ads"`
	Shopping        []WebItem       `json:"shopping"`
	RelatedSearches []RelatedSearch `json:"relatedSearches"`
}

type MapsRequest struct {
	Query    string `json:"q"`
	Country  string `json:"gl,omitempty"`
	Language string `json:"hl,omitempty"`
	Page     int    `json:"page,omitempty"`
}

type Place struct {
	Title       string   `json:"title"`
	Address     string   `json:"address"`
	PhoneNumber string   `json:"phoneNumber"`
	Website     string   `json:"website"`
	Rating      *float64 `json:"rating"`
	Reviews     *int     `json:"reviews"`
	Category    string   `json:"category"`
	PlaceID     string   `json:"placeId"`
}

type MapsResponse struct {
	Places []Place `json:"places"`
}

type AutocompleteRequest struct {
	Query   string `json:"q"`
	Country string `json:"gl,omitempty"`
}

type WebBackend interface {
	Search(ctx context.Context, req *WebRequest) (*WebResponse, error)
}

type MapsBackend interface {
	Maps(ctx context.Context, req *MapsRequest) (*MapsResponse, error)
}

type AutocompleteBackend interface {
	Autocomplete(ctx context.Context, req *AutocompleteRequest) ([]string, error)
}

// CountsAsCall reports whether a backend call that returned err still
// reached the backend.
func CountsAsCall(err error) bool {
	if err == nil || errors.Is(err, ErrDecodeResponse) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}
