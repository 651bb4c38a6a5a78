package ratelimit

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Tier is one rate-limiting class: which paths it covers and how much
// traffic it admits before denying, plus the escalation policy for
// identifiers that keep hitting the limit.
type Tier struct {
	// Name identifies the tier in results, headers, and metrics.
	Name string `yaml:"name"`

	// Limit is the maximum number of requests per Window.
	Limit int `yaml:"limit"`

	// Window is the sliding counting window.
	Window time.Duration `yaml:"window"`

	// BlockThreshold is the number of rejections within a window that
	// escalates to a block. Zero disables escalation.
	BlockThreshold int `yaml:"blockThreshold"`

	// BlockDuration is how long an escalated block lasts.
	BlockDuration time.Duration `yaml:"blockDuration"`

	// Patterns are path regexes selecting this tier. A tier with no
	// patterns is a catch-all.
	Patterns []string `yaml:"patterns"`
}

type compiledTier struct {
	Tier
	patterns []*regexp.Regexp
}

// TierSet is an ordered list of tiers. Classification is first match
// wins, so more specific tiers go first and the catch-all last.
type TierSet struct {
	tiers []compiledTier
}

// NewTierSet compiles and validates an ordered tier list. The last tier
// must be a catch-all so every request classifies somewhere.
func NewTierSet(tiers []Tier) (*TierSet, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("ratelimit: no tiers defined")
	}

	ts := &TierSet{tiers: make([]compiledTier, 0, len(tiers))}
	seen := make(map[string]struct{}, len(tiers))

	for i, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("ratelimit: tier %d has no name", i)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("ratelimit: duplicate tier %q", t.Name)
		}
		seen[t.Name] = struct{}{}

		if t.Limit <= 0 {
			return nil, fmt.Errorf("ratelimit: tier %q: limit must be positive", t.Name)
		}
		if t.Window <= 0 {
			return nil, fmt.Errorf("ratelimit: tier %q: window must be positive", t.Name)
		}
		if t.BlockThreshold > 0 && t.BlockDuration <= 0 {
			return nil, fmt.Errorf("ratelimit: tier %q: blockDuration required with blockThreshold", t.Name)
		}

		ct := compiledTier{Tier: t}
		for _, p := range t.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("ratelimit: tier %q: pattern %q: %w", t.Name, p, err)
			}
			ct.patterns = append(ct.patterns, re)
		}
		if len(ct.patterns) == 0 && i != len(tiers)-1 {
			return nil, fmt.Errorf("ratelimit: catch-all tier %q must be last", t.Name)
		}
		ts.tiers = append(ts.tiers, ct)
	}

	last := ts.tiers[len(ts.tiers)-1]
	if len(last.patterns) != 0 {
		return nil, fmt.Errorf("ratelimit: last tier %q must be a catch-all (no patterns)", last.Name)
	}
	return ts, nil
}

// Match classifies a path. The catch-all guarantees a hit.
func (ts *TierSet) Match(path string) Tier {
	for _, ct := range ts.tiers {
		if len(ct.patterns) == 0 {
			return ct.Tier
		}
		for _, re := range ct.patterns {
			if re.MatchString(path) {
				return ct.Tier
			}
		}
	}
	// Unreachable: construction guarantees a trailing catch-all.
	return ts.tiers[len(ts.tiers)-1].Tier
}

// ByName looks up a tier for explicit block/unblock operations.
func (ts *TierSet) ByName(name string) (Tier, bool) {
	for _, ct := range ts.tiers {
		if ct.Name == name {
			return ct.Tier, true
		}
	}
	return Tier{}, false
}

// DefaultTiers returns the built-in classification:
//
//   - auth: credential endpoints, 5 requests per minute, three
//     rejections escalate to a five-minute block
//   - api: programmatic endpoints, 100 requests per minute
//   - default: everything else, 300 requests per minute
func DefaultTiers() []Tier {
	return []Tier{
		{
			Name:           "auth",
			Limit:          5,
			Window:         time.Minute,
			BlockThreshold: 3,
			BlockDuration:  5 * time.Minute,
			Patterns:       []string{`^/auth(/|$)`, `^/login$`, `^/token$`, `^/password(/|$)`},
		},
		{
			Name:           "api",
			Limit:          100,
			Window:         time.Minute,
			BlockThreshold: 10,
			BlockDuration:  10 * time.Minute,
			Patterns:       []string{`^/api(/|$)`},
		},
		{
			Name:   "default",
			Limit:  300,
			Window: time.Minute,
		},
	}
}

type tiersFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// LoadTiers parses an ordered tier list from YAML. Validation happens
// in NewTierSet.
func LoadTiers(r io.Reader) ([]Tier, error) {
	var doc tiersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("ratelimit: parsing tiers: %w", err)
	}
	if len(doc.Tiers) == 0 {
		return nil, fmt.Errorf("ratelimit: tiers file defines no tiers")
	}
	return doc.Tiers, nil
}

// LoadTiersFile reads a tier list from a YAML file on disk.
func LoadTiersFile(path string) ([]Tier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: opening tiers file: %w", err)
	}
	defer f.Close()
	return LoadTiers(f)
}
