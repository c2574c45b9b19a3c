// Package lorem produces placeholder text for seeded feeds and articles.
package lorem

import (
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Words is the word pool text is drawn from.
var Words = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
	"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
	"et", "dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam",
	"quis", "nostrud", "exercitation", "ullamco", "laboris", "nisi",
	"aliquip", "ex", "ea", "commodo", "consequat", "duis", "aute", "irure",
	"in", "reprehenderit", "voluptate", "velit", "esse", "cillum", "fugiat",
	"nulla", "pariatur", "excepteur", "sint", "occaecat", "cupidatat", "non",
	"proident", "sunt", "culpa", "qui", "officia", "deserunt", "mollit",
	"anim", "id", "est", "laborum", "cras", "justo", "odio", "dapibus",
	"facilisis", "egestas", "felis", "donec", "pulvinar", "neque", "laoreet",
	"suspendisse", "interdum", "faucibus", "nisl", "tincidunt", "integer",
	"posuere", "erat", "ante", "venenatis", "morbi", "leo", "risus", "porta",
	"ac", "vestibulum", "at", "eros", "praesent", "blandit", "euismod",
}

// Sentence and paragraph lengths, inclusive.
const (
	MinSentenceWords    = 5
	MaxSentenceWords    = 15
	MinParagraphPhrases = 3
	MaxParagraphPhrases = 8
)

// Generator draws text from a random source.
type Generator struct {
	rng *rand.Rand
}

// New creates a Generator using rng.
func New(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) pick() string {
	return Words[g.rng.Intn(len(Words))]
}

// Words returns n lowercase words separated by spaces.
func (g *Generator) Words(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(g.pick())
	}
	return b.String()
}

// TitleWords returns n words, each capitalized.
func (g *Generator) TitleWords(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(capitalize(g.pick()))
	}
	return b.String()
}

// Sentence returns 5 to 15 words with the first capitalized and a
// trailing period.
func (g *Generator) Sentence() string {
	return capitalize(g.Words(g.between(MinSentenceWords, MaxSentenceWords))) + "."
}

// Paragraph returns 3 to 8 sentences joined by single spaces.
func (g *Generator) Paragraph() string {
	n := g.between(MinParagraphPhrases, MaxParagraphPhrases)
	sentences := make([]string, n)
	for i := range sentences {
		sentences[i] = g.Sentence()
	}
	return strings.Join(sentences, " ")
}

// HTMLParagraphs returns n paragraphs wrapped in <p> tags, one per line.
func (g *Generator) HTMLParagraphs(n int) string {
	paragraphs := make([]string, n)
	for i := range paragraphs {
		paragraphs[i] = "<p>" + g.Paragraph() + "</p>"
	}
	return strings.Join(paragraphs, "\n")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
