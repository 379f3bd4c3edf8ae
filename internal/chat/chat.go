// Package chat runs a screenplay-style dialogue session: a rolling turn
// history is rendered into a prompt, several candidate replies are sampled,
// trimmed to their first sentence and reranked, and the winner goes back
// into the history.
package chat

import (
	"context"
	"regexp"
	"strings"

	"pytia/internal/lm"
	"pytia/internal/logger"
	"pytia/internal/logits"
	"pytia/internal/rank"
)

// Speaker tags for history turns, matching the prompt markup.
const (
	SpeakerUser = "USER"
	SpeakerBot  = "BOT"
)

// Fallback is the reply used when every sampled candidate trims to nothing.
const Fallback = "Jasne, w czym mogę pomóc?"

// Preamble sets the scene and the reply discipline for the model.
const Preamble = "Poniżej znajduje się scenka dialogowa w stylu scenariusza filmowego.\n" +
	"Rola BOT: rozmowny, zwięzły towarzysz rozmowy. Odpowiada krótko (1-3 zdania),\n" +
	"logicznie i naturalnie, nie wychodzi poza temat użytkownika.\n" +
	"Zawsze pisze po polsku. Formatuj linie jako 'USER:' i 'BOT:'.\n"

// FewShot anchors the markup with two example exchanges.
const FewShot = "USER: Hej! Kim jesteś?\n" +
	"BOT: Jestem lekkim czatbotem do pogaduch, odpowiadam zwięźle i rzeczowo.\n" +
	"USER: Opowiedz suchara.\n" +
	"BOT: Informatyk nie płacze, ma tylko problem z wilgotnością w oczach.\n"

const (
	defaultMaxTurns   = 14
	defaultCandidates = 10
	defaultMaxTokens  = 50
	defaultTemp       = 0.8
	defaultTopP       = 0.85
	maxReplyLen       = 200
)

var sentenceRe = regexp.MustCompile(`[^.?!]{2,}[.?!]`)

// Turn is one utterance in the dialogue.
type Turn struct {
	Speaker string
	Text    string
}

// History is the bounded rolling window of recent turns. Appending past the
// window drops the oldest turn; entries are never mutated.
type History struct {
	maxTurns int
	turns    []Turn
}

func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &History{maxTurns: maxTurns}
}

func (h *History) Append(speaker, text string) {
	h.turns = append(h.turns, Turn{Speaker: speaker, Text: text})
	if len(h.turns) > h.maxTurns {
		h.turns = h.turns[len(h.turns)-h.maxTurns:]
	}
}

// Turns returns the retained window, oldest first.
func (h *History) Turns() []Turn {
	return h.turns
}

// BuildPrompt renders preamble, few-shot block and the retained turns into
// the screenplay prompt, ending with an open "BOT:" line for the model to
// complete.
func BuildPrompt(h *History) string {
	lines := []string{Preamble, FewShot}
	for _, t := range h.Turns() {
		text := strings.TrimSpace(strings.ReplaceAll(t.Text, "\r", " "))
		lines = append(lines, t.Speaker+": "+text)
	}
	lines = append(lines, "BOT:")
	return strings.Join(lines, "\n")
}

// FirstSentence trims a raw continuation to a single bot reply: everything
// from the next "USER:" line on is dropped, a leading "BOT:" marker is
// stripped, the first complete sentence is kept when one exists, and the
// result is capped at 200 characters.
func FirstSentence(text string) string {
	text = strings.TrimSpace(strings.SplitN(text, "\nUSER:", 2)[0])
	if i := strings.Index(text, "BOT:"); i >= 0 {
		text = strings.TrimSpace(text[i+len("BOT:"):])
	}
	if m := sentenceRe.FindString(text); m != "" {
		text = strings.TrimSpace(m)
	}
	runes := []rune(text)
	if len(runes) > maxReplyLen {
		runes = runes[:maxReplyLen]
	}
	return strings.TrimSpace(string(runes))
}

// Config tunes a Session. Zero values take the defaults above.
type Config struct {
	Seed         int64
	MaxTurns     int
	Candidates   int
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// Session holds the dialogue state and the sampling pipeline for one
// conversation. Not safe for concurrent use.
type Session struct {
	tok        lm.Tokenizer
	sampler    *logits.Sampler
	history    *History
	candidates int
	log        logger.Logger
}

func NewSession(model lm.Causal, tok lm.Tokenizer, cfg Config, log logger.Logger) *Session {
	if cfg.Candidates <= 0 {
		cfg.Candidates = defaultCandidates
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemp
	}
	if cfg.TopP <= 0 {
		cfg.TopP = defaultTopP
	}
	if log == nil {
		log = logger.Default()
	}
	// Keep the role markers out of sampled replies at the source;
	// FirstSentence still trims any multi-token leak.
	banned := logits.BannedWords{Words: map[string]struct{}{
		"user:": {},
		"bot:":  {},
	}}
	return &Session{
		tok: tok,
		sampler: logits.New(model, tok, logits.Config{
			Seed:         cfg.Seed,
			Temperature:  cfg.Temperature,
			TopP:         cfg.TopP,
			MaxNewTokens: cfg.MaxNewTokens,
			Filters:      []logits.Filter{banned},
		}),
		history:    NewHistory(cfg.MaxTurns),
		candidates: cfg.Candidates,
		log:        log,
	}
}

// History exposes the session's turn window, oldest first.
func (s *Session) History() []Turn {
	return s.history.Turns()
}

// Seed replays prior turns into the history window, oldest first. Turns
// beyond the window are dropped the same way live appends would drop them.
func (s *Session) Seed(turns []Turn) {
	for _, t := range turns {
		s.history.Append(t.Speaker, t.Text)
	}
}

// Reply appends the user utterance, samples candidate replies, and returns
// the best one. Individual failed samples are skipped; the call errors only
// when no candidate could be generated at all.
func (s *Session) Reply(ctx context.Context, user string) (string, error) {
	s.history.Append(SpeakerUser, user)

	prompt, err := s.tok.Encode(BuildPrompt(s.history))
	if err != nil {
		return "", err
	}

	var cands []rank.Candidate
	var lastErr error
	for i := 0; i < s.candidates; i++ {
		sample, err := s.sampler.Sample(ctx, prompt)
		if err != nil {
			s.log.Warn("candidate sample failed", "error", err)
			lastErr = err
			continue
		}
		if text := FirstSentence(sample.Text); text != "" {
			cands = append(cands, rank.Candidate{Text: text})
		}
	}
	if len(cands) == 0 && lastErr != nil {
		return "", lastErr
	}

	reply := Fallback
	if best, ok := (rank.Scorer{Reference: user}).Best(cands); ok {
		reply = best.Text
	}
	s.history.Append(SpeakerBot, reply)
	return reply, nil
}
