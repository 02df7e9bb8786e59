package repository

import (
	"strconv"
	"strings"

	"leadgen/dedup"
)

type Source string

const (
	SourceSearch Source = "search"
	SourceMaps   Source = "maps"
)

type SourceType string

const (
	SourceTypeOrganic  SourceType = "organic"
	SourceTypeAds      SourceType = "ads"
	SourceTypeShopping SourceType = "shopping"
	SourceTypePlace    SourceType = "place"
)

// ResultRecord is one accepted business hit from either backend.
// Web hits carry URL/Title/Description; map places carry Website/Title
// (business name)/Address and the optional place fields.
type ResultRecord struct {
	Source      Source     `json:"source"`
	SourceType  SourceType `json:"source_type,omitempty"`
	Domain      string     `json:"domain"`
	URL         string     `json:"url,omitempty"`
	Website     string     `json:"website,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
	Query       string     `json:"query"`
	City        string     `json:"city"`
	Country     string     `json:"country,omitempty"`
	Position    int        `json:"position,omitempty"`

	Phone       string   `json:"phone,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Category    string   `json:"category,omitempty"`
	PlaceID     string   `json:"place_id,omitempty"`
}

// Link returns the URL the record points at, if any
func (r *ResultRecord) Link() string {
	if r.Source == SourceMaps {
		return r.Website
	}
	return r.URL
}

// IdentityKey returns the dedup key: the normalized URL for web hits, the
// normalized website or the place id for map places. The site| and place|
// prefixes keep the two map key spaces apart.
func (r *ResultRecord) IdentityKey() string {
	if r.Source == SourceMaps {
		return MapsIdentity(r.Website, r.PlaceID)
	}
	if r.URL == "" {
		return ""
	}
	return dedup.Normalize(r.URL)
}

// MapsIdentity builds the identity key for a place
func MapsIdentity(website, placeID string) string {
	if website != "" {
		return "site|" + dedup.Normalize(website)
	}
	if placeID != "" {
		return "place|" + placeID
	}
	return ""
}

// Column names used for tabular output
const (
	ColDomain       = "domain"
	ColURL          = "url"
	ColWebsite      = "website"
	ColTitle        = "title"
	ColBusinessName = "business_name"
	ColDescription  = "description"
	ColAddress      = "address"
	ColPhone        = "phone"
	ColRating       = "rating"
	ColReviewCount  = "review_count"
	ColCategory     = "category"
	ColPlaceID      = "place_id"
	ColSourceType   = "source_type"
	ColQuery        = "query"
	ColCity         = "city"
	ColCountry      = "country"
	ColPosition     = "position"
	ColSource       = "source"
)

// CanonicalColumns is the preferred column order for exports
var CanonicalColumns = []string{
	ColDomain, ColURL, ColWebsite, ColTitle, ColBusinessName, ColDescription,
	ColAddress, ColPhone, ColRating, ColReviewCount, ColCategory, ColPlaceID,
	ColSourceType, ColQuery, ColCity, ColCountry, ColPosition, ColSource,
}

var WebColumns = []string{
	ColDomain, ColURL, ColTitle, ColDescription, ColSourceType, ColQuery,
	ColCity, ColCountry, ColPosition, ColSource,
}

var MapsColumns = []string{
	ColBusinessName, ColAddress, ColPhone, ColWebsite, ColDomain, ColRating,
	ColReviewCount, ColCategory, ColCity, ColCountry, ColQuery, ColPlaceID,
	ColSource,
}

// Fields returns the record as column -> value for the columns its source
// defines. Optional values that are unset are left out.
func (r *ResultRecord) Fields() map[string]string {
	f := map[string]string{
		ColDomain: r.Domain,
		ColQuery:  r.Query,
		ColCity:   r.City,
		ColSource: string(r.Source),
	}
	if r.Country != "" {
		f[ColCountry] = r.Country
	}

	if r.Source == SourceMaps {
		f[ColBusinessName] = r.Title
		f[ColAddress] = r.Address
		f[ColPhone] = r.Phone
		f[ColWebsite] = r.Website
		f[ColCategory] = r.Category
		f[ColPlaceID] = r.PlaceID
		if r.Rating != nil {
			f[ColRating] = strconv.FormatFloat(*r.Rating, 'f', -1, 64)
		}
		if r.ReviewCount != nil {
			f[ColReviewCount] = strconv.Itoa(*r.ReviewCount)
		}
		return f
	}

	f[ColURL] = r.URL
	f[ColTitle] = r.Title
	f[ColDescription] = r.Description
	f[ColSourceType] = string(r.SourceType)
	if r.Position > 0 {
		f[ColPosition] = strconv.Itoa(r.Position)
	}
	return f
}

// RecordFromFields rebuilds a record from a tabular row
func RecordFromFields(f map[string]string) ResultRecord {
	get := func(k string) string { return strings.TrimSpace(f[k]) }

	r := ResultRecord{
		Source:  Source(get(ColSource)),
		Domain:  get(ColDomain),
		Query:   get(ColQuery),
		City:    get(ColCity),
		Country: get(ColCountry),
	}
	if r.Source == "" {
		if get(ColBusinessName) != "" || get(ColPlaceID) != "" {
			r.Source = SourceMaps
		} else {
			r.Source = SourceSearch
		}
	}

	if r.Source == SourceMaps {
		r.SourceType = SourceTypePlace
		r.Title = get(ColBusinessName)
		r.Address = get(ColAddress)
		r.Phone = get(ColPhone)
		r.Website = get(ColWebsite)
		r.Category = get(ColCategory)
		r.PlaceID = get(ColPlaceID)
		if v, err := strconv.ParseFloat(get(ColRating), 64); err == nil {
			r.Rating = &v
		}
		if v, err := strconv.Atoi(get(ColReviewCount)); err == nil {
			r.ReviewCount = &v
		}
		return r
	}

	r.URL = get(ColURL)
	r.Title = get(ColTitle)
	r.Description = get(ColDescription)
	r.SourceType = SourceType(get(ColSourceType))
	if v, err := strconv.Atoi(get(ColPosition)); err == nil {
		r.Position = v
	}
	if r.Domain == "" && r.URL != "" {
		r.Domain = dedup.ExtractDomain(r.URL)
	}
	return r
}
