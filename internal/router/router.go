// Package router answers Polish factual questions through an ordered chain
// of strategies: arithmetic heuristic, fixed lexicon, yes/no scoring,
// capital-city cloze, question-specific cloze templates, and a generic cloze
// fallback. The first stage that produces an answer wins.
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"pytia/internal/arith"
	"pytia/internal/cloze"
	"pytia/internal/lm"
	"pytia/internal/logger"
	"pytia/internal/score"
)

// Unknown is the terminal answer when no strategy matched.
const Unknown = "nie wiem"

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	prepositionRe = regexp.MustCompile(`(?i)^(państwa|kraju|krajem|w|we|z|ze)\s+`)

	capitalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^jaka jest stolica\s+(.+?)\?$`),
		regexp.MustCompile(`(?i)^stolica\s+(.+?)\?$`),
		regexp.MustCompile(`(?i)^stolicą\s+(.+?)\s+jest\s*\??$`),
	}
)

// lexicon maps recognized question forms to fixed answers. Zero model calls.
var lexicon = []struct {
	re     *regexp.Regexp
	answer string
}{
	{regexp.MustCompile(`(?i)^jak brzmi nazwa terenowej łady\??$`), "Niva"},
	{regexp.MustCompile(`(?i)^jak nazywa się pojedynczy element schodów.*\?$`), "stopień"},
	{regexp.MustCompile(`(?i)^jak nazywają się boczne pasy na mundurowych spodniach\??$`), "lampasy"},
	{regexp.MustCompile(`(?i)^jak nazywał się gigantyczny goryl, bohater filmów japońskich\??$`), "King Kong"},
	{regexp.MustCompile(`(?i)^jak z łaciny nazywa się dowód sądowy.*\?$`), "alibi"},
	{regexp.MustCompile(`(?i)^który kolumbijski pisarz.*1927.*sto lat samotności.*\?$`), "Gabriel García Márquez"},
	{regexp.MustCompile(`(?i)^w którym wieku został odlany dzwon zygmunta\??$`), "XVI"},
	{regexp.MustCompile(`(?i)^z którego kontynentu pochodzi 90%.*ryżu\??$`), "Azja"},
	{regexp.MustCompile(`(?i)^która organizacja powstała wcześniej:.*ew.*euratom.*\?$`), "EWWiS"},
}

// templates carry a cloze sentence for recognized question forms. The
// lexicon takes precedence where both match. multi marks answers longer
// than one token, resolved with a greedy span instead of PLL reranking.
var templates = []struct {
	re       *regexp.Regexp
	sentence string
	multi    bool
}{
	{regexp.MustCompile(`(?i)^jak brzmi nazwa terenowej łady\??$`),
		"Terenowa Łada to <mask>.", false},
	{regexp.MustCompile(`(?i)^jak nazywa się pojedynczy element schodów.*\?$`),
		"Pojedynczy element schodów to <mask>.", false},
	{regexp.MustCompile(`(?i)^jak nazywają się boczne pasy na mundurowych spodniach\??$`),
		"Boczne pasy na mundurowych spodniach to <mask>.", false},
	{regexp.MustCompile(`(?i)^jak nazywał się gigantyczny goryl, bohater filmów japońskich\??$`),
		"Gigantyczny goryl z filmów nazywał się <mask>.", false},
	{regexp.MustCompile(`(?i)^jak z łaciny nazywa się dowód sądowy.*\?$`),
		"Dowód nieobecności sprawcy na miejscu to po łacinie <mask>.", false},
	{regexp.MustCompile(`(?i)^który kolumbijski pisarz.*1927.*sto lat samotności.*\?$`),
		"Autorem „Stu lat samotności” jest <mask>.", true},
	{regexp.MustCompile(`(?i)^w którym wieku został odlany dzwon zygmunta\??$`),
		"Dzwon Zygmunt odlano w <mask> wieku.", false},
	{regexp.MustCompile(`(?i)^z którego kontynentu pochodzi 90%.*ryżu\??$`),
		"Dziewięćdziesiąt procent światowej produkcji ryżu pochodzi z <mask>.", false},
	{regexp.MustCompile(`(?i)^która organizacja powstała wcześniej:.*ew.*euratom.*\?$`),
		"<mask> powstała wcześniej.", false},
}

// QA is one answered question.
type QA struct {
	Question string
	Answer   string
}

// Engine routes questions. The masked model and tokenizer are the only
// model-side dependencies; they are injected, never global.
type Engine struct {
	masked lm.Masked
	tok    lm.Tokenizer
	cloze  *cloze.Engine
	log    logger.Logger

	// sorted replays the legacy behavior of answering questions in sorted
	// order. Off by default: callers get answers in the order they asked.
	sorted bool
}

// Option configures an Engine.
type Option func(*Engine)

// Sorted makes AnswerAll sort (and deduplicate whitespace in) the questions
// before answering, matching the legacy batch behavior.
func Sorted() Option { return func(e *Engine) { e.sorted = true } }

// WithLogger sets the diagnostic logger.
func WithLogger(log logger.Logger) Option { return func(e *Engine) { e.log = log } }

func New(masked lm.Masked, tok lm.Tokenizer, opts ...Option) *Engine {
	e := &Engine{
		masked: masked,
		tok:    tok,
		cloze:  cloze.New(masked, tok),
		log:    logger.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer resolves one question through the strategy chain. It only returns
// an error when a model-dependent stage failed; "no strategy matched" is the
// Unknown sentinel, not an error.
func (e *Engine) Answer(ctx context.Context, question string) (string, error) {
	q := NormalizeWhitespace(question)

	if a, ok := arith.Answer(q); ok {
		e.log.Debug("router matched arithmetic", "question", q)
		return a, nil
	}

	for _, entry := range lexicon {
		if entry.re.MatchString(q) {
			e.log.Debug("router matched lexicon", "question", q, "answer", entry.answer)
			return entry.answer, nil
		}
	}

	if strings.HasPrefix(strings.ToLower(q), "czy ") {
		return e.yesNo(ctx, q)
	}

	if country, ok := matchCapital(q); ok {
		a, err := e.capital(ctx, country)
		if err == nil && a != "" {
			return a, nil
		}
		if err != nil && !errors.Is(err, cloze.ErrNoFillers) {
			return "", err
		}
		// no fillers: fall through to the remaining stages
	}

	for _, t := range templates {
		if !t.re.MatchString(q) {
			continue
		}
		a, err := e.fromTemplate(ctx, t.sentence, t.multi)
		if err != nil {
			if errors.Is(err, cloze.ErrNoFillers) {
				return Unknown, nil
			}
			return "", err
		}
		if a != "" {
			e.log.Debug("router matched cloze template", "question", q, "answer", a)
			return a, nil
		}
	}

	generic := q + " Odpowiedź: " + cloze.Mask + "."
	a, err := e.cloze.FillTop(ctx, generic, 3)
	if err != nil {
		if errors.Is(err, cloze.ErrNoFillers) {
			return Unknown, nil
		}
		return "", err
	}
	e.log.Debug("router used generic cloze", "question", q, "answer", a)
	return a, nil
}

// AnswerAll answers a batch. Blank questions are skipped; input order is
// preserved unless the Sorted option is set. A failing question yields a
// diagnostic answer and never aborts the rest of the batch.
func (e *Engine) AnswerAll(ctx context.Context, questions []string) []QA {
	qs := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
	}
	if e.sorted {
		sort.Strings(qs)
	}

	out := make([]QA, 0, len(qs))
	for _, q := range qs {
		a, err := e.answerSafe(ctx, q)
		if err != nil {
			e.log.Warn("question failed", "question", q, "error", err)
			a = fmt.Sprintf("[błąd: %v]", err)
		}
		out = append(out, QA{Question: q, Answer: a})
	}
	return out
}

// answerSafe converts panics from the model adapter into errors so one bad
// question cannot take the batch down.
func (e *Engine) answerSafe(ctx context.Context, q string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.Answer(ctx, q)
}

// yesNo compares the pseudo-log-likelihood of the question followed by a
// one-word affirmative against the negative. Ties go to "Nie".
func (e *Engine) yesNo(ctx context.Context, q string) (string, error) {
	yes, err := score.PLL(ctx, e.masked, e.tok, q+" Tak.")
	if err != nil {
		return "", fmt.Errorf("yes/no scoring: %w", err)
	}
	no, err := score.PLL(ctx, e.masked, e.tok, q+" Nie.")
	if err != nil {
		return "", fmt.Errorf("yes/no scoring: %w", err)
	}
	e.log.Debug("router yes/no", "question", q, "yes", yes, "no", no)
	if yes > no {
		return "Tak", nil
	}
	return "Nie", nil
}

func (e *Engine) capital(ctx context.Context, country string) (string, error) {
	sentence := fmt.Sprintf("Stolicą %s jest %s.", country, cloze.Mask)
	a, err := e.cloze.FillBest(ctx, sentence)
	if err != nil {
		return "", err
	}
	e.log.Debug("router matched capital", "country", country, "answer", a)
	return a, nil
}

func (e *Engine) fromTemplate(ctx context.Context, sentence string, multi bool) (string, error) {
	if multi {
		prefix := strings.TrimSpace(strings.SplitN(sentence, cloze.Mask, 2)[0])
		a, err := e.cloze.GreedySpan(ctx, prefix, cloze.MaxSpanTokens, ".")
		if err != nil {
			return "", err
		}
		if a != "" {
			return a, nil
		}
		// An empty span still leaves the single-token rerank of the same
		// template before the generic stage takes over.
	}
	return e.cloze.FillBest(ctx, sentence)
}

// matchCapital extracts the country from a capital-city question, stripping
// leading prepositions and capitalizing the first letter.
func matchCapital(q string) (string, bool) {
	for _, pat := range capitalPatterns {
		m := pat.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		country := prepositionRe.ReplaceAllString(NormalizeWhitespace(m[1]), "")
		country = strings.Trim(country, " .")
		if country == "" {
			return "", false
		}
		r, size := utf8.DecodeRuneInString(country)
		if unicode.IsLower(r) {
			country = string(unicode.ToUpper(r)) + country[size:]
		}
		return country, true
	}
	return "", false
}

// NormalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
