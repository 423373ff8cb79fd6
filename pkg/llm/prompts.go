package llm

import (
	"fmt"
	"strings"
)

const streamPromptTemplate = `You are an alternate history engine. The user poses a "what if" premise; you produce a plausible alternate timeline.

Premise: %s

Respond with one JSON object per line, no markdown fences, in this order:
1. {"type":"summary","summary":"<2-3 sentence overview of the altered world>"}
2. Five to eight lines of {"type":"event","year":<int>,"title":"<short title>","description":"<1-2 sentences>","geoPoints":[[<lat>,<lon>],...]} in chronological order, each with at least one coordinate pair for the places involved.
3. Optionally {"type":"geoChanges","geoChanges":<GeoJSON FeatureCollection of redrawn borders>}
4. {"type":"done"}

Years must be plausible for the premise. Titles and descriptions must be concrete and specific, never generic filler.`

const scenarioPromptTemplate = `You are an alternate history engine. The user poses a "what if" premise; you produce a plausible alternate timeline.

Premise: %s

Respond with a single JSON object:
{"summary":"<2-3 sentence overview>","timeline":[{"year":<int>,"title":"<short title>","description":"<1-2 sentences>","geoPoints":[[<lat>,<lon>],...]},...]}

Include five to eight chronological events, each with at least one coordinate pair.`

// NormalizePrompt trims the premise and strips a leading "what if" so the
// template does not double it.
func NormalizePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	lower := strings.ToLower(prompt)
	if strings.HasPrefix(lower, "what if") {
		prompt = strings.TrimSpace(prompt[len("what if"):])
		prompt = strings.TrimPrefix(prompt, ",")
		prompt = strings.TrimSpace(prompt)
	}
	return prompt
}

// StreamPrompt renders the line-delimited generation prompt.
func StreamPrompt(prompt string) string {
	return fmt.Sprintf(streamPromptTemplate, NormalizePrompt(prompt))
}

// ScenarioPrompt renders the single-response generation prompt.
func ScenarioPrompt(prompt string) string {
	return fmt.Sprintf(scenarioPromptTemplate, NormalizePrompt(prompt))
}
