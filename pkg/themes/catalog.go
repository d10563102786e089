// Package themes holds the catalog of practice themes and their scenarios.
// Theme order is part of the catalog and is preserved through JSON.
package themes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnknownTheme is returned for a theme or scenario missing from the catalog
var ErrUnknownTheme = errors.New("unknown theme")

// Theme is one practice theme with its ordered scenarios
type Theme struct {
	Name      string
	Scenarios []string
}

// Catalog is an ordered list of themes
type Catalog struct {
	Themes []Theme
}

// Builtin returns the catalog served by the local practice server
func Builtin() *Catalog {
	return &Catalog{Themes: []Theme{
		{Name: "business", Scenarios: []string{"job interview", "business meeting", "presentation", "networking"}},
		{Name: "travel", Scenarios: []string{"airport", "hotel", "restaurant", "sightseeing"}},
		{Name: "daily life", Scenarios: []string{"shopping", "weather", "hobbies", "family"}},
		{Name: "social", Scenarios: []string{"meeting friends", "party", "social media", "dating"}},
	}}
}

// Names returns theme names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Themes))
	for i, t := range c.Themes {
		names[i] = t.Name
	}
	return names
}

// Scenarios returns the scenarios of a theme
func (c *Catalog) Scenarios(theme string) ([]string, error) {
	for _, t := range c.Themes {
		if t.Name == theme {
			return t.Scenarios, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, theme)
}

// Default returns the first theme and its first scenario
func (c *Catalog) Default() (string, string) {
	for _, t := range c.Themes {
		if len(t.Scenarios) > 0 {
			return t.Name, t.Scenarios[0]
		}
	}
	return "", ""
}

// Validate checks that the theme exists and offers the scenario
func (c *Catalog) Validate(theme, scenario string) error {
	scenarios, err := c.Scenarios(theme)
	if err != nil {
		return err
	}
	for _, s := range scenarios {
		if s == scenario {
			return nil
		}
	}
	return fmt.Errorf("%w: %q has no scenario %q", ErrUnknownTheme, theme, scenario)
}

// Resolve fills an empty theme or scenario from the catalog and validates the result
func (c *Catalog) Resolve(theme, scenario string) (string, string, error) {
	if theme == "" {
		theme, scenario = c.Default()
		if theme == "" {
			return "", "", fmt.Errorf("%w: catalog is empty", ErrUnknownTheme)
		}
	}
	if scenario == "" {
		scenarios, err := c.Scenarios(theme)
		if err != nil {
			return "", "", err
		}
		if len(scenarios) == 0 {
			return "", "", fmt.Errorf("%w: %q has no scenarios", ErrUnknownTheme, theme)
		}
		scenario = scenarios[0]
	}
	if err := c.Validate(theme, scenario); err != nil {
		return "", "", err
	}
	return theme, scenario, nil
}

// MarshalJSON encodes the catalog as an object of theme -> scenarios in order
func (c *Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range c.Themes {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		scenarios := t.Scenarios
		if scenarios == nil {
			scenarios = []string{}
		}
		list, err := json.Marshal(scenarios)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(list)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of theme -> scenarios keeping key order
func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("invalid catalog: expected object")
	}

	var themes []Theme
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid catalog: expected theme name")
		}
		var scenarios []string
		if err := dec.Decode(&scenarios); err != nil {
			return fmt.Errorf("invalid scenarios for %q: %w", name, err)
		}
		themes = append(themes, Theme{Name: name, Scenarios: scenarios})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	c.Themes = themes
	return nil
}

// Fetch retrieves the catalog with a single GET request
func Fetch(ctx context.Context, httpClient *http.Client, url string) (*Catalog, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build themes request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch themes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch themes: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read themes: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}
