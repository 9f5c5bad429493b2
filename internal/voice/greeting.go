package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// greetingCacheTTL bounds how long a generated greeting is reused, so rapid
// repeated wakes do not hit the language model every time.
const greetingCacheTTL = 5 * time.Minute

// Generator produces text from a prompt. Satisfied by *llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// dayPart buckets the local time for greeting tone.
type dayPart string

const (
	partMorning   dayPart = "morning"
	partAfternoon dayPart = "afternoon"
	partEvening   dayPart = "evening"
	partNight     dayPart = "night"
)

func partOfDay(t time.Time) dayPart {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return partMorning
	case h >= 12 && h < 17:
		return partAfternoon
	case h >= 17 && h < 22:
		return partEvening
	default:
		return partNight
	}
}

var cannedGreetings = map[dayPart]string{
	partMorning:   "Good morning! I'm here, what can I do for you?",
	partAfternoon: "Good afternoon! How can I help?",
	partEvening:   "Good evening! What's on your mind?",
	partNight:     "Hey, still up? I'm listening.",
}

// GreetingSource says where the greeting text came from.
type GreetingSource string

const (
	GreetingGenerated GreetingSource = "generated"
	GreetingFallback  GreetingSource = "fallback"
)

// Greeting is the composed spoken response to a wake detection, carrying the
// context it was built from for downstream display.
type Greeting struct {
	Text      string
	Source    GreetingSource
	TimeOfDay string
	Mood      string // ambient mood tag, "" when unknown
}

// Greeter composes the spoken response to a wake-phrase detection. It asks
// the language model for a short contextual greeting and falls back to a
// canned line per time of day when the model is unreachable.
type Greeter struct {
	generator Generator
	userName  string
	mood      func() string // latest ambient mood tag, "" when unknown
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	cached   *Greeting
	cachedAt time.Time
}

// NewGreeter creates a greeter. generator may be nil; every greeting then
// comes from the canned set. mood may be nil when no emotion monitor runs.
func NewGreeter(generator Generator, userName string, mood func() string, logger zerolog.Logger) *Greeter {
	return &Greeter{
		generator: generator,
		userName:  userName,
		mood:      mood,
		now:       time.Now,
		logger:    logger.With().Str("component", "greeter").Logger(),
	}
}

// Greet returns the greeting to speak for a wake detection. Never fails: on
// model errors it serves the canned line with Source set to Fallback.
func (g *Greeter) Greet(ctx context.Context) Greeting {
	part := partOfDay(g.now())

	g.mu.Lock()
	if g.cached != nil && g.cached.TimeOfDay == string(part) && g.now().Sub(g.cachedAt) < greetingCacheTTL {
		cached := *g.cached
		g.mu.Unlock()
		return cached
	}
	g.mu.Unlock()

	greeting := g.generate(ctx, part)

	g.mu.Lock()
	g.cached = &greeting
	g.cachedAt = g.now()
	g.mu.Unlock()
	return greeting
}

func (g *Greeter) generate(ctx context.Context, part dayPart) Greeting {
	greeting := Greeting{
		Source:    GreetingFallback,
		TimeOfDay: string(part),
		Text:      cannedGreetings[part],
	}
	if g.mood != nil {
		greeting.Mood = g.mood()
	}
	if g.generator == nil {
		return greeting
	}

	prompt := fmt.Sprintf(
		"The user just said the wake phrase. It is %s. Reply with one short, warm greeting", part)
	if g.userName != "" {
		prompt += fmt.Sprintf(" addressed to %s", g.userName)
	}
	if greeting.Mood != "" {
		prompt += fmt.Sprintf(". They have sounded %s lately", greeting.Mood)
	}
	prompt += ". No more than a dozen words."

	text, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Greeting generation failed, using canned line")
		return greeting
	}
	if text = strings.TrimSpace(text); text == "" {
		return greeting
	}
	greeting.Text = text
	greeting.Source = GreetingGenerated
	return greeting
}
