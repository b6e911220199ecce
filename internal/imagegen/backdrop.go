package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/sunburntimer/internal/log"
)

// UVBand is the WHO exposure category of a UV index.
type UVBand string

const (
	BandLow      UVBand = "low"
	BandModerate UVBand = "moderate"
	BandHigh     UVBand = "high"
	BandVeryHigh UVBand = "very_high"
	BandExtreme  UVBand = "extreme"
)

func BandFor(uvi float64) UVBand {
	switch {
	case uvi < 3:
		return BandLow
	case uvi < 6:
		return BandModerate
	case uvi < 8:
		return BandHigh
	case uvi < 11:
		return BandVeryHigh
	default:
		return BandExtreme
	}
}

var bandScenes = map[UVBand]string{
	BandLow:      "a calm overcast beach in soft morning light, muted blues and greys",
	BandModerate: "a park with scattered clouds and dappled sunlight, fresh greens",
	BandHigh:     "a bright beach under a clear sky, warm yellow light",
	BandVeryHigh: "a sun-bleached coastline at midday with harsh shadows, orange tones",
	BandExtreme:  "a blazing desert horizon under a white-hot sun, deep reds and violets",
}

func backdropPrompt(band UVBand) string {
	scene, ok := bandScenes[band]
	if !ok {
		scene = bandScenes[BandModerate]
	}
	return "Minimal flat illustration of " + scene +
		". Wide landscape composition, no people, no text, darker lower third for overlaid text."
}

// Generator renders card backdrops with the OpenAI image API.
type Generator struct {
	client openai.Client
	model  string
}

func NewGenerator(apiKey, baseURL string) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Generator{
		client: openai.NewClient(opts...),
		model:  "gpt-image-1",
	}, nil
}

// Generate returns PNG bytes for a band's backdrop.
func (g *Generator) Generate(ctx context.Context, band UVBand) ([]byte, error) {
	log.Infof("imagegen: generating backdrop for %s", band)

	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:        g.model,
		Prompt:       backdropPrompt(band),
		Size:         openai.ImageGenerateParamsSize1536x1024,
		Quality:      openai.ImageGenerateParamsQualityLow,
		OutputFormat: openai.ImageGenerateParamsOutputFormatPNG,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("no image data returned")
	}

	imageBytes, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	log.Infof("imagegen: generated %s backdrop (%d bytes)", band, len(imageBytes))
	return imageBytes, nil
}
