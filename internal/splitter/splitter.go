package splitter

import "strings"

// Splitter cuts text into chunks of at most ChunkSize runes, preferring
// the configured separators as boundaries before falling back to plain
// character windows. Overlap applies on the character-window fallback.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

func New(chunkSize, overlap int, separators []string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, separators: separators}
}

// NewParent returns the coarse splitter used for parent segments.
func NewParent(chunkSize, overlap int) *Splitter {
	return New(chunkSize, overlap, []string{"\n#", "\n##", "\n\n\n"})
}

// NewChild returns the fine splitter used for embedded child chunks.
func NewChild(chunkSize, overlap int) *Splitter {
	return New(chunkSize, overlap, []string{"\n\n", "\n", " "})
}

func (s *Splitter) Split(text string) []string {
	var out []string
	s.split(strings.TrimSpace(text), s.separators, &out)
	return out
}

func (s *Splitter) split(text string, separators []string, out *[]string) {
	if text == "" {
		return
	}
	if runeLen(text) <= s.chunkSize {
		*out = append(*out, text)
		return
	}
	if len(separators) == 0 {
		*out = append(*out, s.hardSplit(text)...)
		return
	}
	sep, rest := separators[0], separators[1:]
	segments := strings.Split(text, sep)
	if len(segments) == 1 {
		s.split(text, rest, out)
		return
	}

	var buf strings.Builder
	flush := func() {
		if piece := strings.TrimSpace(buf.String()); piece != "" {
			*out = append(*out, piece)
		}
		buf.Reset()
	}
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		segLen := runeLen(segment)
		if segLen > s.chunkSize {
			flush()
			s.split(segment, rest, out)
			continue
		}
		if buf.Len() > 0 && runeLen(buf.String())+len(sep)+segLen > s.chunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(segment)
	}
	flush()
}

func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}
	out := make([]string, 0, len(runes)/step+1)
	for i := 0; i < len(runes); i += step {
		end := i + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
