package openai

import "fmt"

// Token costs for generated images, keyed by size then quality. "auto" lets
// the vendor choose dimensions and is billed like the square preset.
var imageTokenTable = map[string]map[string]int{
	"1024x1024": {"low": 272, "medium": 1056, "high": 4160},
	"1024x1536": {"low": 408, "medium": 1584, "high": 6240},
	"1536x1024": {"low": 400, "medium": 1568, "high": 6208},
	"auto":      {"low": 272, "medium": 1056, "high": 4160},
}

var (
	imageSizes     = []string{"1024x1024", "1024x1536", "1536x1024", "auto"}
	imageQualities = []string{"low", "medium", "high"}
)

// maxPartialImages caps how many partial previews are billed per generation.
const maxPartialImages = 3

// ImageTokens returns the output-token cost of one generated image. Empty
// arguments fall back to the defaults; explicit but unknown values are
// rejected with an error naming the value and the allowed set.
func ImageTokens(size, quality string) (int, error) {
	if size == "" {
		size = defaultImageSize
	}
	if quality == "" {
		quality = defaultImageQuality
	}
	byQuality, ok := imageTokenTable[size]
	if !ok {
		return 0, fmt.Errorf("openai: invalid image size %q (allowed: %v)", size, imageSizes)
	}
	tokens, ok := byQuality[quality]
	if !ok {
		return 0, fmt.Errorf("openai: invalid image quality %q (allowed: %v)", quality, imageQualities)
	}
	return tokens, nil
}

// ImageTokensWithPartials adds the cost of partial-image previews: each
// partial is billed like one full image. Counts outside [0, 3] are clamped.
func ImageTokensWithPartials(size, quality string, partials int) (int, error) {
	base, err := ImageTokens(size, quality)
	if err != nil {
		return 0, err
	}
	if partials < 0 {
		partials = 0
	}
	if partials > maxPartialImages {
		partials = maxPartialImages
	}
	return base + base*partials, nil
}
