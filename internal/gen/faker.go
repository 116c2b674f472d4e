package gen

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Supported generation hints.
const (
	HintUUID     = "uuid"
	HintName     = "name"
	HintEmail    = "email"
	HintUsername = "username"
	HintCompany  = "company"
	HintPhrase   = "phrase"
	HintEAN13    = "ean13"
	HintLexify   = "lexify"
	HintFloat    = "float"
	HintInt      = "int"
	HintChoice   = "choice"
	HintText     = "text"
)

var (
	firstNames = []string{
		"Alice", "Bruno", "Carmen", "Dmitri", "Elena", "Felix", "Greta",
		"Hiro", "Ines", "Jonas", "Katya", "Lars", "Mira", "Noah", "Olga",
		"Pavel", "Quinn", "Rosa", "Stefan", "Tara",
	}
	lastNames = []string{
		"Adler", "Berg", "Castillo", "Dalton", "Ekman", "Fischer", "Garcia",
		"Holt", "Ivanov", "Jensen", "Keller", "Lindgren", "Moreau", "Novak",
		"Okafor", "Petrov", "Reyes", "Silva", "Tanaka", "Weber",
	}
	emailDomains = []string{
		"example.com", "example.org", "example.net", "mail.test", "inbox.test",
	}
	companyHeads = []string{
		"Northwind", "Acme", "Globex", "Initech", "Umbra", "Vertex",
		"Cascade", "Pinnacle", "Quantum", "Meridian",
	}
	companyTails = []string{
		"Labs", "Systems", "Industries", "Holdings", "Logistics",
		"Dynamics", "Partners", "Works",
	}
	phraseAdjectives = []string{
		"seamless", "adaptive", "robust", "modular", "scalable",
		"streamlined", "resilient", "intuitive",
	}
	phraseNouns = []string{
		"synergy", "platform", "pipeline", "framework", "interface",
		"paradigm", "workflow", "architecture",
	}
	textWords = []string{
		"the", "quick", "value", "stream", "order", "signal", "batch",
		"record", "state", "window", "event", "session", "flows", "over",
		"time", "with", "steady", "rate",
	}
)

// Faker is the default ValueGenerator implementation.
type Faker struct {
	r *rand.Rand
}

// New creates a Faker drawing from the given random source.
func New(r *rand.Rand) *Faker {
	return &Faker{r: r}
}

// Generate produces a value for the hint. Unknown hints are an error so a
// schema typo surfaces immediately instead of emitting nil fields.
func (f *Faker) Generate(hint string, params map[string]any) (any, error) {
	switch hint {
	case HintUUID:
		return uuid.Must(uuid.NewRandomFromReader(f.r)).String(), nil

	case HintName:
		return f.pick(firstNames) + " " + f.pick(lastNames), nil

	case HintEmail:
		return fmt.Sprintf("%s.%s@%s",
			strings.ToLower(f.pick(firstNames)),
			strings.ToLower(f.pick(lastNames)),
			f.pick(emailDomains)), nil

	case HintUsername:
		return fmt.Sprintf("%s_%s%02d",
			strings.ToLower(f.pick(firstNames)),
			strings.ToLower(f.pick(lastNames)),
			f.r.Intn(100)), nil

	case HintCompany:
		return f.pick(companyHeads) + " " + f.pick(companyTails), nil

	case HintPhrase:
		return fmt.Sprintf("%s %s %s",
			f.pick(phraseAdjectives), f.pick(phraseAdjectives), f.pick(phraseNouns)), nil

	case HintEAN13:
		return f.ean13(), nil

	case HintLexify:
		pattern := paramString(params, "text", "????")
		return f.lexify(pattern), nil

	case HintFloat:
		return f.genFloat(params)

	case HintInt:
		min := paramInt(params, "min", 1)
		max := paramInt(params, "max", 100)
		if max < min {
			return nil, fmt.Errorf("int hint: max %d < min %d", max, min)
		}
		return min + f.r.Int63n(max-min+1), nil

	case HintChoice:
		elems, ok := params["elements"].([]any)
		if !ok || len(elems) == 0 {
			return nil, fmt.Errorf("choice hint requires a non-empty elements parameter")
		}
		return elems[f.r.Intn(len(elems))], nil

	case HintText:
		maxChars := int(paramInt(params, "max_chars", 80))
		return f.text(maxChars), nil

	default:
		return nil, fmt.Errorf("unknown generation hint %q", hint)
	}
}

func (f *Faker) pick(list []string) string {
	return list[f.r.Intn(len(list))]
}

// ean13 builds a syntactically valid EAN-13 code: 12 random digits plus
// the standard checksum digit.
func (f *Faker) ean13() string {
	digits := make([]int, 13)
	sum := 0
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		digits[i] = f.r.Intn(10)
		if i%2 == 0 {
			sum += digits[i]
		} else {
			sum += 3 * digits[i]
		}
		sb.WriteByte(byte('0' + digits[i]))
	}
	check := (10 - sum%10) % 10
	sb.WriteByte(byte('0' + check))
	return sb.String()
}

// lexify replaces every '?' in the pattern with a random lowercase letter.
func (f *Faker) lexify(pattern string) string {
	out := []byte(pattern)
	for i, c := range out {
		if c == '?' {
			out[i] = byte('a' + f.r.Intn(26))
		}
	}
	return string(out)
}

func (f *Faker) genFloat(params map[string]any) (any, error) {
	min := paramFloat(params, "min", 0)
	max := paramFloat(params, "max", 1000)
	if positive, _ := params["positive"].(bool); positive && min <= 0 {
		min = 0.001
	}
	if max < min {
		return nil, fmt.Errorf("float hint: max %v < min %v", max, min)
	}
	return min + f.r.Float64()*(max-min), nil
}

func (f *Faker) text(maxChars int) string {
	var sb strings.Builder
	for {
		w := f.pick(textWords)
		if sb.Len() > 0 {
			if sb.Len()+1+len(w) > maxChars {
				break
			}
			sb.WriteByte(' ')
		} else if len(w) > maxChars {
			break
		}
		sb.WriteString(w)
	}
	return sb.String()
}

func paramString(params map[string]any, key, fallback string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return fallback
}

func paramInt(params map[string]any, key string, fallback int64) int64 {
	switch n := params[key].(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return fallback
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	switch n := params[key].(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return fallback
}
