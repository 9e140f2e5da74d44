package letters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTemplates() []Template {
	return []Template{
		{Category: "landlord", Key: "rent_reduction", Subject: "Mietminderung", BodyDE: "Sehr geehrte {{.Name}},", RequiredVariables: []string{"Name"}},
		{Category: "landlord", Key: "notice", Subject: "Kündigung", BodyDE: "Hiermit kündige ich..."},
		{Category: "authority", Key: "objection", Subject: "Widerspruch", BodyDE: "Hiermit widerspreche ich..."},
	}
}

func TestMapCatalog_Categories(t *testing.T) {
	c := NewMapCatalog(sampleTemplates())
	assert.ElementsMatch(t, []string{"landlord", "authority"}, c.Categories())
}

func TestMapCatalog_Templates(t *testing.T) {
	c := NewMapCatalog(sampleTemplates())
	tpls, err := c.Templates("landlord")
	require.NoError(t, err)
	assert.Len(t, tpls, 2)
}

func TestMapCatalog_Templates_UnknownCategory(t *testing.T) {
	c := NewMapCatalog(sampleTemplates())
	_, err := c.Templates("nonexistent")
	require.Error(t, err)
}

func TestMapCatalog_Template_ByKey(t *testing.T) {
	c := NewMapCatalog(sampleTemplates())
	tpl, err := c.Template("landlord", "rent_reduction")
	require.NoError(t, err)
	assert.Equal(t, "Mietminderung", tpl.Subject)
}

func TestMapCatalog_Template_UnknownKey(t *testing.T) {
	c := NewMapCatalog(sampleTemplates())
	_, err := c.Template("landlord", "nonexistent")
	require.Error(t, err)
}

func TestLoadMapCatalog_FromJSON(t *testing.T) {
	data := []byte(`[{"category":"landlord","key":"x","subject":"S","body_de":"B"}]`)
	c, err := LoadMapCatalog(data)
	require.NoError(t, err)
	tpl, err := c.Template("landlord", "x")
	require.NoError(t, err)
	assert.Equal(t, "S", tpl.Subject)
}
