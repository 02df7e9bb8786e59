package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exclusions lists sites that are never useful leads (marketplaces,
// social networks, directories). Web queries exclude them with -site:.
type Exclusions struct {
	Categories     map[string][]string `yaml:"categories"`
	B2BDirectories []string            `yaml:"b2b_directories"`
	IncludeB2B     bool                `yaml:"include_b2b_directories"`
	categoryOrder  []string
}

var defaultExclusions = Exclusions{
	Categories: map[string][]string{
		"marketplaces": {
			"amazon.com", "ebay.com", "etsy.com", "walmart.com", "target.com",
			"alibaba.com", "aliexpress.com", "wish.com", "overstock.com",
			"wayfair.com", "homedepot.com", "lowes.com", "costco.com",
			"samsclub.com", "temu.com", "dhgate.com", "1688.com", "made-in-china.com",
		},
		"social_media": {
			"youtube.com", "facebook.com", "instagram.com", "pinterest.com",
			"tiktok.com", "twitter.com", "linkedin.com", "snapchat.com",
		},
		"information": {"wikipedia.org", "reddit.com", "quora.com", "wikihow.com", "answers.com"},
		"reviews": {
			"trustpilot.com", "bbb.org", "yelp.com", "sitejabber.com",
			"consumeraffairs.com", "bizrate.com",
		},
		"search_engines": {"google.com", "yahoo.com", "bing.com", "duckduckgo.com"},
		"news_media":     {"nytimes.com", "wsj.com", "forbes.com", "bloomberg.com", "cnbc.com"},
	},
	B2BDirectories: []string{
		"thomasnet.com", "mfg.com", "globalsources.com", "indiamart.com",
		"exportersindia.com", "tradeindia.com", "tradekey.com", "ec21.com",
		"kompass.com", "europages.com", "go4worldbusiness.com", "yellowpages.com",
		"manta.com", "superpages.com", "hotfrog.com", "cylex.net",
	},
	IncludeB2B: true,
	categoryOrder: []string{
		"marketplaces", "social_media", "information", "reviews",
		"search_engines", "news_media",
	},
}

// DefaultExclusions returns the built-in exclusion list
func DefaultExclusions() *Exclusions {
	e := defaultExclusions
	return &e
}

// LoadExclusions reads an exclusion list from YAML. An empty path yields the
// built-in list.
func LoadExclusions(path string) (*Exclusions, error) {
	if path == "" {
		return DefaultExclusions(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclusions file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse exclusions file: %w", err)
	}
	var e Exclusions
	if err := node.Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to parse exclusions file: %w", err)
	}
	e.categoryOrder = mappingKeys(&node, "categories")
	return &e, nil
}

// mappingKeys returns the keys of a top-level mapping field in document order
func mappingKeys(doc *yaml.Node, field string) []string {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != field || root.Content[i+1].Kind != yaml.MappingNode {
			continue
		}
		m := root.Content[i+1]
		keys := make([]string, 0, len(m.Content)/2)
		for j := 0; j < len(m.Content); j += 2 {
			keys = append(keys, m.Content[j].Value)
		}
		return keys
	}
	return nil
}

// Sites returns every excluded site once, in file order
func (e *Exclusions) Sites() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(sites []string) {
		for _, s := range sites {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	for _, name := range e.categoryOrder {
		add(e.Categories[name])
	}
	if e.IncludeB2B {
		add(e.B2BDirectories)
	}
	return out
}

// QueryString renders the exclusions as -site: operators
func (e *Exclusions) QueryString() string {
	sites := e.Sites()
	parts := make([]string, len(sites))
	for i, s := range sites {
		parts[i] = "-site:" + s
	}
	return strings.Join(parts, " ")
}
