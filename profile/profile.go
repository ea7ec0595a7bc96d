// Package profile mines a bulk text corpus (exported social-media posts)
// into a structured style profile and seeds the voice namespace with one
// pattern per document. The profile is recomputed wholesale on each run, not
// incrementally merged.
package profile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Document is one corpus entry.
type Document struct {
	Text   string
	Date   time.Time
	Source string // e.g. "linkedin"
}

// MinDocumentChars is the noise floor: shorter documents (after
// normalization) are discarded.
const MinDocumentChars = 50

// lexiconTop caps each ranked phrase list.
const lexiconTop = 10

// Lexicon holds the five ranked lists of recurring phrase shapes.
type Lexicon struct {
	Openers             []string
	Closers             []string
	SignOffs            []string
	Hedges              []string
	RhetoricalQuestions []string
}

// Cadence holds the corpus rhythm statistics.
type Cadence struct {
	MeanSentenceWords float64 // total words / total sentences
	MeanParagraphs    float64 // paragraphs per document
	BulletUsage       float64 // fraction of documents with a bullet marker
}

// ToneSliders are coarse keyword-prevalence proxies in [0,1]. They are not
// calibrated against any ground truth.
type ToneSliders struct {
	Warmth     float64
	Directness float64
	Formality  float64
}

// VoiceProfile is the derived aggregate for a corpus snapshot. Building is
// deterministic: the same input ordering yields identical rankings and
// slider values.
type VoiceProfile struct {
	Lexicon        Lexicon
	Cadence        Cadence
	Tone           ToneSliders
	SignatureMoves []string
	Documents      int // documents surviving the noise floor
}

var (
	urlRe     = regexp.MustCompile(`https?://\S+`)
	hashtagRe = regexp.MustCompile(`#\w+`)
	mentionRe = regexp.MustCompile(`@\w+`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)

	openerRe   = regexp.MustCompile(`(?im)^(?:so|because|when|after|lately|recently|today|honestly|here's|i've been|i'm|i was|we just)\b[^.!?\n]{0,60}`)
	closerRe   = regexp.MustCompile(`(?i)\b(?:let me know|reach out|happy to chat|would love to hear|what do you think|drop a comment|dm me|check it out|learn more|stay tuned)\b[^.!?\n]{0,40}`)
	signOffRe  = regexp.MustCompile(`(?im)^(?:best|cheers|thanks|thank you|regards|warmly|talk soon|onward)[,!.]?[ \t]*$`)
	hedgeRe    = regexp.MustCompile(`(?i)\b(?:i think|i believe|maybe|perhaps|probably|it seems|i guess|sort of|kind of|in my experience)\b`)
	questionRe = regexp.MustCompile(`(?m)[A-Za-z][^.!?\n]{2,79}\?`)

	causalOpenRe = regexp.MustCompile(`(?i)^(?:because|since|after|when|the reason|i've been|it started)\b`)
	ctaRe        = regexp.MustCompile(`(?i)\b(?:let me know|reach out|what do you think|dm me|check it out|drop a comment|share|follow|subscribe|sign up)\b`)
	bulletRe     = regexp.MustCompile(`(?m)^[ \t]*[-•]\s`)
)

var (
	warmthKeywords     = []string{"thanks", "thank you", "appreciate", "love", "excited", "glad", "happy", "wonderful", "amazing", "grateful"}
	directnessKeywords = []string{"let's", "we should", "i recommend", "bottom line", "the point is", "simply", "clearly", "need to", "must", "right now"}
	formalityKeywords  = []string{"regarding", "furthermore", "therefore", "accordingly", "sincerely", "moreover", "pursuant", "kindly", "respectfully", "per our"}
)

// Signature-move prevalence thresholds: fraction of documents exhibiting the
// behavior before a move is emitted.
const (
	causalOpenThreshold = 0.3
	bulletThreshold     = 0.4
	ctaThreshold        = 0.5
)

// Build computes the profile from a corpus snapshot.
func Build(docs []Document) *VoiceProfile {
	var normalized []string
	for _, doc := range docs {
		text := NormalizeDocument(doc.Text)
		if len(text) < MinDocumentChars {
			continue
		}
		normalized = append(normalized, text)
	}

	p := &VoiceProfile{Documents: len(normalized)}
	if len(normalized) == 0 {
		return p
	}
	corpus := strings.Join(normalized, "\n\n")

	p.Lexicon = Lexicon{
		Openers:             topPhrases(openerRe, corpus),
		Closers:             topPhrases(closerRe, corpus),
		SignOffs:            topPhrases(signOffRe, corpus),
		Hedges:              topPhrases(hedgeRe, corpus),
		RhetoricalQuestions: topPhrases(questionRe, corpus),
	}
	p.Cadence = cadence(normalized)
	p.Tone = ToneSliders{
		Warmth:     toneSlider(corpus, warmthKeywords),
		Directness: toneSlider(corpus, directnessKeywords),
		Formality:  toneSlider(corpus, formalityKeywords),
	}
	p.SignatureMoves = signatureMoves(normalized)
	return p
}

// NormalizeDocument strips URLs, hashtags and @-mentions and collapses
// horizontal whitespace. Newlines survive: paragraph structure feeds the
// cadence statistics.
func NormalizeDocument(s string) string {
	s = urlRe.ReplaceAllString(s, " ")
	s = hashtagRe.ReplaceAllString(s, " ")
	s = mentionRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// topPhrases ranks a pattern family's matches by frequency. Ties break
// lexicographically so rebuilds are stable.
func topPhrases(re *regexp.Regexp, corpus string) []string {
	counts := make(map[string]int)
	for _, m := range re.FindAllString(corpus, -1) {
		phrase := strings.ToLower(strings.TrimSpace(m))
		if phrase != "" {
			counts[phrase]++
		}
	}
	phrases := make([]string, 0, len(counts))
	for phrase := range counts {
		phrases = append(phrases, phrase)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if counts[phrases[i]] != counts[phrases[j]] {
			return counts[phrases[i]] > counts[phrases[j]]
		}
		return phrases[i] < phrases[j]
	})
	if len(phrases) > lexiconTop {
		phrases = phrases[:lexiconTop]
	}
	return phrases
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

func cadence(docs []string) Cadence {
	var totalWords, totalSentences, totalParagraphs, bulletDocs int
	for _, doc := range docs {
		for _, sentence := range sentenceSplitRe.Split(doc, -1) {
			words := len(strings.Fields(sentence))
			if words == 0 {
				continue
			}
			totalSentences++
			totalWords += words
		}
		for _, para := range strings.Split(doc, "\n") {
			if strings.TrimSpace(para) != "" {
				totalParagraphs++
			}
		}
		if bulletRe.MatchString(doc) {
			bulletDocs++
		}
	}

	c := Cadence{}
	if totalSentences > 0 {
		c.MeanSentenceWords = float64(totalWords) / float64(totalSentences)
	}
	c.MeanParagraphs = float64(totalParagraphs) / float64(len(docs))
	c.BulletUsage = float64(bulletDocs) / float64(len(docs))
	return c
}

// toneSlider is the fraction of the keyword list found in the corpus,
// clamped to [0,1].
func toneSlider(corpus string, keywords []string) float64 {
	lower := strings.ToLower(corpus)
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	slider := float64(found) / float64(len(keywords))
	if slider > 1 {
		slider = 1
	}
	if slider < 0 {
		slider = 0
	}
	return slider
}

func signatureMoves(docs []string) []string {
	var causalOpens, bullets, ctaEnds int
	for _, doc := range docs {
		if causalOpenRe.MatchString(doc) {
			causalOpens++
		}
		if bulletRe.MatchString(doc) {
			bullets++
		}
		if tail := lastSentence(doc); ctaRe.MatchString(tail) {
			ctaEnds++
		}
	}

	total := float64(len(docs))
	var moves []string
	if float64(causalOpens)/total > causalOpenThreshold {
		moves = append(moves, fmt.Sprintf("opens with a causal or narrative clause (%.0f%% of posts)", 100*float64(causalOpens)/total))
	}
	if float64(bullets)/total > bulletThreshold {
		moves = append(moves, fmt.Sprintf("structures posts with bullet points (%.0f%% of posts)", 100*float64(bullets)/total))
	}
	if float64(ctaEnds)/total > ctaThreshold {
		moves = append(moves, fmt.Sprintf("ends with a call to action (%.0f%% of posts)", 100*float64(ctaEnds)/total))
	}
	return moves
}

func lastSentence(doc string) string {
	sentences := sentenceSplitRe.Split(strings.TrimSpace(doc), -1)
	for i := len(sentences) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(sentences[i]); s != "" {
			return s
		}
	}
	return ""
}

// Format renders the profile for prompt injection.
func (p *VoiceProfile) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Style profile built from %d posts.\n", p.Documents)
	fmt.Fprintf(&b, "Cadence: %.1f words per sentence, %.1f paragraphs per post, bullets in %.0f%% of posts.\n",
		p.Cadence.MeanSentenceWords, p.Cadence.MeanParagraphs, 100*p.Cadence.BulletUsage)
	fmt.Fprintf(&b, "Tone: warmth %.2f, directness %.2f, formality %.2f.\n",
		p.Tone.Warmth, p.Tone.Directness, p.Tone.Formality)

	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(items, " | "))
	}
	writeList("Common openers", p.Lexicon.Openers)
	writeList("Common closers", p.Lexicon.Closers)
	writeList("Sign-offs", p.Lexicon.SignOffs)
	writeList("Hedges", p.Lexicon.Hedges)
	writeList("Rhetorical questions", p.Lexicon.RhetoricalQuestions)

	for _, move := range p.SignatureMoves {
		fmt.Fprintf(&b, "Signature move: %s\n", move)
	}
	return strings.TrimRight(b.String(), "\n")
}
