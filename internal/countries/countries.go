package countries

import (
	_ "embed"
	"fmt"
	"math/rand"
	"strings"

	"gopkg.in/yaml.v3"
)

// Country describes one target portal: where it lives and the per-site quirks
// the page flows have to honor.
type Country struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`

	// DarkCaptcha marks portals that render the high-contrast challenge
	// variant; its screenshot has to be cropped before OCR.
	DarkCaptcha bool `yaml:"dark_captcha"`

	// RegisterOptions holds the reason-list indexes usable when registering a
	// new order on this portal. When several are listed one is picked at
	// random per registration.
	RegisterOptions []int `yaml:"register_options"`
}

// OrderInfoURL is the login page for an existing order.
func (c Country) OrderInfoURL() string {
	return c.URL + "/queue/orderinfo.aspx"
}

// RegisterURL is the entry page for creating a new order.
func (c Country) RegisterURL() string {
	return c.URL + "/queue/"
}

func (c Country) RegisterOption(r *rand.Rand) int {
	if len(c.RegisterOptions) == 0 {
		return 1
	}
	if len(c.RegisterOptions) == 1 {
		return c.RegisterOptions[0]
	}
	return c.RegisterOptions[r.Intn(len(c.RegisterOptions))]
}

//go:embed countries.yaml
var registryYAML []byte

type Registry struct {
	byID map[int]Country
}

// Load parses the embedded registry. Called once at process start.
func Load() (*Registry, error) {
	var doc struct {
		Countries []Country `yaml:"countries"`
	}
	if err := yaml.Unmarshal(registryYAML, &doc); err != nil {
		return nil, fmt.Errorf("countries: %w", err)
	}
	if len(doc.Countries) == 0 {
		return nil, fmt.Errorf("countries: registry is empty")
	}

	byID := make(map[int]Country, len(doc.Countries))
	for _, c := range doc.Countries {
		if c.ID == 0 || c.URL == "" {
			return nil, fmt.Errorf("countries: entry %q missing id or url", c.Name)
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("countries: duplicate id %d", c.ID)
		}
		byID[c.ID] = c
	}
	return &Registry{byID: byID}, nil
}

func (r *Registry) Get(id int) (Country, error) {
	c, ok := r.byID[id]
	if !ok {
		return Country{}, fmt.Errorf("countries: unknown country id %d", id)
	}
	return c, nil
}

func (r *Registry) Has(id int) bool {
	_, ok := r.byID[id]
	return ok
}

// MatchURL finds the country whose portal serves the given URL.
func (r *Registry) MatchURL(url string) (Country, bool) {
	for _, c := range r.byID {
		if strings.HasPrefix(url, c.URL) {
			return c, true
		}
	}
	return Country{}, false
}

// All returns every registered country, in no particular order.
func (r *Registry) All() []Country {
	out := make([]Country, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}
