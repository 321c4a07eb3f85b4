// Package narration decides what to say about the scene and when.
//
// A Scheduler runs once per control cycle. It keeps two independent tracks:
// an object track that announces the most confident detection and a generic
// track that summarizes sector occupancy when nothing was detected. Phrases
// come from an optional Generator (an LLM) under a strict time budget, with
// deterministic template fallbacks so the user always hears something.
package narration

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/teslashibe/go-pathfinder/pkg/fusion"
	"github.com/teslashibe/go-pathfinder/pkg/ranging"
)

// MaxPhraseLen caps generated phrases, in characters.
const MaxPhraseLen = 80

// Context describes what a phrase should convey.
type Context struct {
	Label    string          // object label, empty for the generic track
	Sector   string          // "left", "ahead" or "right"
	Distance ranging.Reading // forward distance
	Obstacle bool            // false when the path is clear
}

// Generator produces a short spoken phrase for a Context.
type Generator interface {
	Generate(ctx context.Context, c Context) (string, error)
}

// Prompt builds the instruction sent to language model generators.
func Prompt(c Context) string {
	label := c.Label
	if label == "" {
		label = "obstacle"
	}
	sector := c.Sector
	if sector == "" {
		sector = fusion.Center.String()
	}

	base := label + " " + sector + fusion.DistanceSuffix(c.Distance)
	if !c.Obstacle {
		base = "clear " + sector
	}
	return "You are a navigation assistant for a visually impaired user. " +
		"Speak one very short phrase (max 6 words), no punctuation other than commas. " +
		"Say the object and direction; include distance like '1.2 meters' if provided. " +
		"Context: " + base + "."
}

// ObjectPhrase is the template for the object track, e.g. "chair left, 1.2 meters".
func ObjectPhrase(label string, sector fusion.Sector, d ranging.Reading) string {
	return label + " " + sector.String() + fusion.DistanceSuffix(d)
}

// GenericPhrase is the template for the generic track, e.g.
// "Obstacle ahead and left, 0.9 meters" or "clear".
func GenericPhrase(o fusion.Occupancy, d ranging.Reading) string {
	prefix := ""
	if o.Any() {
		prefix = "Obstacle "
	}
	return prefix + fusion.Summary(o) + fusion.DistanceSuffix(d)
}

// Clean trims model output and caps it at MaxPhraseLen characters.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'")
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= MaxPhraseLen {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:MaxPhraseLen]))
}
