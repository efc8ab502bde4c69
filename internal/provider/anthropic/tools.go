package anthropic

// defaultWebSearchMaxUses bounds how many searches one turn may spend.
const defaultWebSearchMaxUses = 5

// tool is one entry of the Messages API tools array.
type tool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

// buildTools maps the feature flags onto the vendor tool list. Anthropic has
// no image-generation tool, so that flag contributes nothing here; the
// adapter then simply returns no image payload, which the contract allows.
func buildTools(webSearch, imageGeneration bool) []tool {
	_ = imageGeneration
	var tools []tool
	if webSearch {
		tools = append(tools, tool{
			Type:    "web_search_20250305",
			Name:    "web_search",
			MaxUses: defaultWebSearchMaxUses,
		})
	}
	return tools
}
