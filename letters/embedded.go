package letters

import "embed"

//go:embed default_templates.json
var defaultTemplatesFS embed.FS

// LoadDefaultCatalog builds the seed catalog shipped with the binary. An
// operator can still point the loader at an external JSON document via
// config; this is only the fallback when none is configured.
func LoadDefaultCatalog() (*MapCatalog, error) {
	data, err := defaultTemplatesFS.ReadFile("default_templates.json")
	if err != nil {
		return nil, err
	}
	return LoadMapCatalog(data)
}
