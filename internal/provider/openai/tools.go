package openai

// Fixed defaults for tool configuration.
const (
	defaultImageSize         = "1024x1024"
	defaultImageQuality      = "medium"
	defaultPartialImages     = 2
	defaultSearchContextSize = "medium"
)

// tool is one entry of the Responses API tools array.
type tool struct {
	Type              string `json:"type"`
	Size              string `json:"size,omitempty"`
	Quality           string `json:"quality,omitempty"`
	PartialImages     int    `json:"partial_images,omitempty"`
	SearchContextSize string `json:"search_context_size,omitempty"`
}

// buildTools maps the two feature flags onto the vendor tool list. The
// image-generation tool always precedes the web-search tool when both are
// enabled; both flags false yields no tools.
func buildTools(webSearch, imageGeneration bool) []tool {
	var tools []tool
	if imageGeneration {
		tools = append(tools, tool{
			Type:          "image_generation",
			Size:          defaultImageSize,
			Quality:       defaultImageQuality,
			PartialImages: defaultPartialImages,
		})
	}
	if webSearch {
		tools = append(tools, tool{
			Type:              "web_search_preview",
			SearchContextSize: defaultSearchContextSize,
		})
	}
	return tools
}
