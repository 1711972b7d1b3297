// Package chunker splits extracted page text into retrieval-sized chunks.
// The split is hierarchical: section (H2 boundary), then paragraph, then
// sentence, then word, until every chunk fits the token bounds. Lists,
// tables, code blocks, and quotes are emitted whole as typed chunks.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/findable-hq/findable/internal/model"
)

// Options bound chunk sizes in estimated tokens.
type Options struct {
	MinTokens int
	MaxTokens int
	Overlap   int
}

// DefaultOptions returns the shipped chunking defaults.
func DefaultOptions() Options {
	return Options{MinTokens: 100, MaxTokens: 512, Overlap: 50}
}

func (o *Options) applyDefaults() {
	if o.MinTokens <= 0 {
		o.MinTokens = 100
	}
	if o.MaxTokens <= o.MinTokens {
		o.MaxTokens = 512
	}
	if o.Overlap < 0 {
		o.Overlap = 50
	}
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s|$)|[^.!?]+$`)

// EstimateTokens approximates the token count of text. Four characters per
// token tracks the common subword tokenizers closely enough for sizing.
func EstimateTokens(text string) int {
	n := len(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	t := n / 4
	if t == 0 {
		t = 1
	}
	return t
}

// block is an intermediate unit between raw text and chunks.
type block struct {
	typ  model.ChunkType
	text string
	path []string
}

// Split chunks a page's extracted text. Chunk hashes are derived from the
// chunk text only, so identical text re-chunks to identical hashes.
func Split(page *model.Page, opts Options) []model.Chunk {
	opts.applyDefaults()
	if strings.TrimSpace(page.ExtractedText) == "" {
		return nil
	}

	blocks := segment(page)
	var out []model.Chunk

	emit := func(typ model.ChunkType, text string, path []string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		sum := sha256.Sum256([]byte(text))
		out = append(out, model.Chunk{
			PageID:        page.ID,
			PageURL:       page.URL,
			Ordinal:       len(out),
			Type:          typ,
			HeadingPath:   append([]string(nil), path...),
			Text:          text,
			TokenEstimate: EstimateTokens(text),
			ContentHash:   hex.EncodeToString(sum[:]),
		})
	}

	var pending []block
	flushPending := func() {
		if len(pending) == 0 {
			return
		}
		joined := make([]string, len(pending))
		for i, b := range pending {
			joined[i] = b.text
		}
		path := pending[0].path
		for _, piece := range boundText(strings.Join(joined, "\n\n"), opts) {
			emit(model.ChunkTypeText, piece, path)
		}
		pending = nil
	}

	for _, b := range blocks {
		switch b.typ {
		case model.ChunkTypeText:
			// Accumulate paragraphs within one heading context until the
			// max bound would be crossed.
			if len(pending) > 0 && !samePath(pending[0].path, b.path) {
				flushPending()
			}
			pending = append(pending, b)
			total := 0
			for _, p := range pending {
				total += EstimateTokens(p.text)
			}
			if total >= opts.MaxTokens {
				flushPending()
			}
		default:
			// Atomic structures flush surrounding text and go out whole.
			flushPending()
			emit(b.typ, b.text, b.path)
		}
	}
	flushPending()

	for i := range out {
		out[i].PositionRatio = float64(i) / float64(len(out))
	}
	return out
}

// segment walks the text line-by-line, tracking the heading stack and
// classifying structural blocks.
func segment(page *model.Page) []block {
	headingLevels := make(map[string]int)
	for _, h := range page.Headings {
		if _, ok := headingLevels[h.Text]; !ok {
			headingLevels[h.Text] = h.Level
		}
	}

	// Heading stack keyed by level; the path is the in-order chain of
	// open headings, so every chunk path is a prefix of the page outline.
	var stack []model.Heading
	currentPath := func() []string {
		path := make([]string, len(stack))
		for i, h := range stack {
			path[i] = h.Text
		}
		return path
	}
	pushHeading := func(text string, level int) {
		for len(stack) > 0 && stack[len(stack)-1].Level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, model.Heading{Level: level, Text: text})
	}

	var blocks []block
	var para []string
	var paraType model.ChunkType

	flush := func() {
		if len(para) == 0 {
			return
		}
		blocks = append(blocks, block{
			typ:  paraType,
			text: strings.Join(para, "\n"),
			path: currentPath(),
		})
		para = nil
		paraType = model.ChunkTypeText
	}

	for _, line := range strings.Split(page.ExtractedText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		if level, ok := headingLevels[trimmed]; ok {
			flush()
			pushHeading(trimmed, level)
			blocks = append(blocks, block{
				typ:  model.ChunkTypeHeading,
				text: trimmed,
				path: currentPath(),
			})
			continue
		}

		lineType := classifyLine(line, trimmed)
		if len(para) > 0 && lineType != paraType {
			flush()
		}
		paraType = lineType
		para = append(para, trimmed)
	}
	flush()
	return blocks
}

func classifyLine(raw, trimmed string) model.ChunkType {
	switch {
	case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
		strings.HasPrefix(trimmed, "• ") || listNumberRe.MatchString(trimmed):
		return model.ChunkTypeList
	case strings.Count(trimmed, "|") >= 2 || strings.Count(raw, "\t") >= 2:
		return model.ChunkTypeTable
	case strings.HasPrefix(trimmed, "> "):
		return model.ChunkTypeQuote
	case strings.HasPrefix(raw, "    ") || strings.HasPrefix(trimmed, "```"):
		return model.ChunkTypeCode
	default:
		return model.ChunkTypeText
	}
}

var listNumberRe = regexp.MustCompile(`^\d+[.)]\s`)

// boundText splits text into pieces within the token bounds: paragraph
// first, then sentence, then word. Adjacent pieces share the configured
// overlap so a fact straddling a boundary stays retrievable from both.
func boundText(text string, opts Options) []string {
	if EstimateTokens(text) <= opts.MaxTokens {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder
	var seeded string

	appendUnit := func(unit string) {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			return
		}
		// A piece holding only the seeded overlap never flushes on its
		// own; it would duplicate the previous tail verbatim.
		if current.Len() > 0 && current.String() != seeded &&
			EstimateTokens(current.String())+EstimateTokens(unit) > opts.MaxTokens {
			piece := current.String()
			pieces = append(pieces, piece)
			current.Reset()
			seeded = overlapTail(piece, opts.Overlap)
			current.WriteString(seeded)
		}
		if EstimateTokens(unit) > opts.MaxTokens {
			// Sentence still too large: fall back to word windows.
			for _, w := range wordWindows(unit, opts) {
				pieces = append(pieces, w)
			}
			return
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(unit)
	}

	for _, para := range strings.Split(text, "\n\n") {
		if EstimateTokens(para) <= opts.MaxTokens {
			appendUnit(para)
			continue
		}
		for _, sentence := range sentenceRe.FindAllString(para, -1) {
			appendUnit(sentence)
		}
	}
	if current.Len() > 0 && current.String() != seeded {
		pieces = append(pieces, current.String())
	}

	// Merge a trailing fragment below the minimum into its predecessor.
	if len(pieces) >= 2 && EstimateTokens(pieces[len(pieces)-1]) < opts.MinTokens {
		pieces[len(pieces)-2] += " " + pieces[len(pieces)-1]
		pieces = pieces[:len(pieces)-1]
	}
	return pieces
}

// overlapTail returns roughly tokens worth of trailing words, using the
// same words-per-token band as wordWindows.
func overlapTail(text string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	words := strings.Fields(text)
	n := tokens * 3 / 4
	if n <= 0 || len(words) == 0 {
		return ""
	}
	if n >= len(words) {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

// wordWindows slices an oversized run of words into max-sized windows with
// the configured overlap.
func wordWindows(text string, opts Options) []string {
	words := strings.Fields(text)
	// Approximate words-per-window from the token bound.
	window := opts.MaxTokens * 3 / 4
	if window < 1 {
		window = 1
	}
	overlap := opts.Overlap * 3 / 4
	if overlap >= window {
		overlap = window / 2
	}

	var out []string
	for start := 0; start < len(words); {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		start = end - overlap
	}
	return out
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
