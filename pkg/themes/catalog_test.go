package themes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUnmarshalPreservesOrder(t *testing.T) {
	data := []byte(`{"zeta":["b","a"],"alpha":["x"],"mid":[]}`)

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	names := c.Names()
	expected := []string{"zeta", "alpha", "mid"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d themes, got %d", len(expected), len(names))
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("Theme %d: expected %q, got %q", i, expected[i], names[i])
		}
	}

	scenarios, err := c.Scenarios("zeta")
	if err != nil {
		t.Fatalf("Scenarios failed: %v", err)
	}
	if scenarios[0] != "b" || scenarios[1] != "a" {
		t.Errorf("Scenario order not preserved: %v", scenarios)
	}
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	tests := []string{
		`["not","an","object"]`,
		`{"theme":"not a list"}`,
		`{"theme":[1,2]}`,
		`{`,
	}
	for _, input := range tests {
		var c Catalog
		if err := json.Unmarshal([]byte(input), &c); err == nil {
			t.Errorf("Expected error for %s", input)
		}
	}
}

func TestMarshalRoundTripKeepsOrder(t *testing.T) {
	data, err := json.Marshal(Builtin())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	expected := `{"business":["job interview","business meeting","presentation","networking"],` +
		`"travel":["airport","hotel","restaurant","sightseeing"],` +
		`"daily life":["shopping","weather","hobbies","family"],` +
		`"social":["meeting friends","party","social media","dating"]}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}
}

func TestValidateAndResolve(t *testing.T) {
	c := Builtin()

	if err := c.Validate("travel", "hotel"); err != nil {
		t.Errorf("Expected valid pair, got %v", err)
	}
	if err := c.Validate("space", "moon"); !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("Expected ErrUnknownTheme, got %v", err)
	}
	if err := c.Validate("travel", "moon"); !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("Expected ErrUnknownTheme for unknown scenario, got %v", err)
	}

	tests := []struct {
		theme, scenario         string
		wantTheme, wantScenario string
	}{
		{"", "", "business", "job interview"},
		{"travel", "", "travel", "airport"},
		{"social", "party", "social", "party"},
	}
	for _, tt := range tests {
		theme, scenario, err := c.Resolve(tt.theme, tt.scenario)
		if err != nil {
			t.Errorf("Resolve(%q, %q) failed: %v", tt.theme, tt.scenario, err)
			continue
		}
		if theme != tt.wantTheme || scenario != tt.wantScenario {
			t.Errorf("Resolve(%q, %q): expected %s/%s, got %s/%s",
				tt.theme, tt.scenario, tt.wantTheme, tt.wantScenario, theme, scenario)
		}
	}

	empty := &Catalog{}
	if _, _, err := empty.Resolve("", ""); !errors.Is(err, ErrUnknownTheme) {
		t.Errorf("Expected ErrUnknownTheme for empty catalog, got %v", err)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/themes" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"travel":["airport","hotel"],"business":["presentation"]}`))
	}))
	defer srv.Close()

	c, err := Fetch(context.Background(), srv.Client(), srv.URL+"/api/themes")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if theme, scenario := c.Default(); theme != "travel" || scenario != "airport" {
		t.Errorf("Expected travel/airport default, got %s/%s", theme, scenario)
	}

	if _, err := Fetch(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Error("Expected error for HTTP 404")
	}
}
