package letters

import (
	"encoding/json"

	"github.com/BaSui01/agentflow/types"
)

// Template is one curated letter template. Its content is treated as
// opaque data loaded from a catalog — the Composer never hardcodes
// template prose.
type Template struct {
	Category         string   `json:"category"`
	Key              string   `json:"key"`
	Subject          string   `json:"subject"`
	BodyDE           string   `json:"body_de"`
	RequiredVariables []string `json:"required_variables"`
}

// Catalog looks up letter templates and their categories. The default
// implementation holds an in-memory map loaded once at startup; a
// future implementation could back it with the store's AppText table
// or an external CMS without changing the Composer.
type Catalog interface {
	Categories() []string
	Templates(category string) ([]Template, error)
	Template(category, key string) (*Template, error)
}

// MapCatalog is a Catalog backed by an in-memory map, populated from
// an external JSON document at startup (LoadMapCatalog) rather than
// hardcoded Go literals.
type MapCatalog struct {
	byCategory map[string][]Template
}

// NewMapCatalog builds a catalog directly from already-decoded
// templates, grouping them by category.
func NewMapCatalog(templates []Template) *MapCatalog {
	c := &MapCatalog{byCategory: make(map[string][]Template)}
	for _, tpl := range templates {
		c.byCategory[tpl.Category] = append(c.byCategory[tpl.Category], tpl)
	}
	return c
}

// LoadMapCatalog decodes a JSON array of Template into a MapCatalog.
func LoadMapCatalog(data []byte) (*MapCatalog, error) {
	var templates []Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, err
	}
	return NewMapCatalog(templates), nil
}

// Categories returns every known category key.
func (c *MapCatalog) Categories() []string {
	out := make([]string, 0, len(c.byCategory))
	for category := range c.byCategory {
		out = append(out, category)
	}
	return out
}

// Templates returns every template in a category.
func (c *MapCatalog) Templates(category string) ([]Template, error) {
	tpls, ok := c.byCategory[category]
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "unknown letter category").WithHTTPStatus(404)
	}
	return tpls, nil
}

// Template returns one template by category+key.
func (c *MapCatalog) Template(category, key string) (*Template, error) {
	tpls, err := c.Templates(category)
	if err != nil {
		return nil, err
	}
	for _, tpl := range tpls {
		if tpl.Key == key {
			return &tpl, nil
		}
	}
	return nil, types.NewError(types.ErrNotFound, "unknown letter template").WithHTTPStatus(404)
}
