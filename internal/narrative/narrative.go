// Package narrative writes a short plain-language summary of a burn estimate.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/sunburntimer/internal/burn"
	"github.com/lox/sunburntimer/internal/tz"
)

const systemPrompt = `You write one or two friendly sentences about sun exposure for a weather app.
Use the facts given. Do not invent numbers. Do not give medical advice beyond sunscreen, shade and timing.
Refer to times in the local clock format given.`

// Input is a finished estimate with the context needed to describe it.
type Input struct {
	Location string
	Timezone string
	Now      time.Time
	Skin     burn.SkinType
	SPF      burn.SPFLevel
	Sweat    burn.SweatLevel
	Result   burn.Result
}

type Writer struct {
	client openai.Client
	model  string
}

func NewWriter(apiKey, baseURL, model string) (*Writer, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Writer{client: openai.NewClient(opts...), model: model}, nil
}

func (w *Writer) Describe(ctx context.Context, in Input) (string, error) {
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(w.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(Facts(in)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Facts renders the estimate as the bullet list sent to the model.
func Facts(in Input) string {
	loc := tz.Location(in.Timezone)
	var b strings.Builder

	if in.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", in.Location)
	}
	fmt.Fprintf(&b, "- Local time now: %s\n", in.Now.In(loc).Format("3:04 PM"))

	skin := burn.SkinTypes[in.Skin]
	fmt.Fprintf(&b, "- Skin: type %s (%s)\n", in.Skin, strings.ToLower(skin.Subtitle))

	if in.SPF == burn.SPFNone {
		b.WriteString("- Sunscreen: none\n")
	} else {
		fmt.Fprintf(&b, "- Sunscreen: %s, sweating: %s\n",
			burn.SPFLevels[in.SPF].Label, strings.ToLower(in.Sweat.Profile().Label))
	}

	peak := 0.0
	for _, p := range in.Result.Points {
		if p.UVIndex > peak {
			peak = p.UVIndex
		}
	}
	fmt.Fprintf(&b, "- Peak UV index in window: %.1f\n", peak)

	if in.Result.BurnTime != nil {
		mins := in.Result.BurnTime.Sub(in.Now).Minutes()
		fmt.Fprintf(&b, "- Burn expected at %s (about %.0f minutes from now)\n",
			in.Result.BurnTime.In(loc).Format("3:04 PM"), mins)
	} else {
		fmt.Fprintf(&b, "- No burn expected in the forecast window; damage reaches %.0f%% of the burn threshold\n",
			in.Result.FinalDamage())
	}
	for _, a := range in.Result.Advice {
		fmt.Fprintf(&b, "- Advice: %s\n", a)
	}
	return b.String()
}
