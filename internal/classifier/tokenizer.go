package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// wordpieceTokenizer encodes text the way the export collaborator's BERT-style
// tokenizer does: whitespace + punctuation pre-split, then greedy
// longest-match subword lookup with "##" continuation pieces.
type wordpieceTokenizer struct {
	vocab map[string]int64
	unkID int64
	clsID int64
	sepID int64
	padID int64
}

// maxWordChars caps the pre-split word length before falling back to [UNK].
const maxWordChars = 100

func loadWordPiece(path string) (*wordpieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var id int64
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r\n")
		if tok == "" {
			continue
		}
		vocab[tok] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	t := &wordpieceTokenizer{vocab: vocab}
	var ok bool
	for _, sp := range []struct {
		name string
		dst  *int64
	}{
		{"[UNK]", &t.unkID},
		{"[CLS]", &t.clsID},
		{"[SEP]", &t.sepID},
		{"[PAD]", &t.padID},
	} {
		if *sp.dst, ok = vocab[sp.name]; !ok {
			return nil, fmt.Errorf("vocabulary missing special token %s", sp.name)
		}
	}
	return t, nil
}

// Encode produces fixed-length input ids and an attention mask of seqLen,
// truncating to seqLen-2 content tokens to leave room for [CLS] and [SEP].
func (t *wordpieceTokenizer) Encode(text string, seqLen int) (ids, mask []int64) {
	ids = make([]int64, seqLen)
	mask = make([]int64, seqLen)
	for i := range ids {
		ids[i] = t.padID
	}

	pos := 0
	ids[pos] = t.clsID
	mask[pos] = 1
	pos++

	limit := seqLen - 1 // keep the last slot for [SEP]
	for _, word := range splitWords(strings.ToLower(text)) {
		if pos >= limit {
			break
		}
		for _, id := range t.wordpiece(word) {
			if pos >= limit {
				break
			}
			ids[pos] = id
			mask[pos] = 1
			pos++
		}
	}

	ids[pos] = t.sepID
	mask[pos] = 1
	return ids, mask
}

// wordpiece runs greedy longest-match-first subword tokenization on one word.
func (t *wordpieceTokenizer) wordpiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{t.unkID}
	}
	var out []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		var id int64
		found := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if v, ok := t.vocab[piece]; ok {
				id = v
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
		out = append(out, id)
		start = end
	}
	return out
}

// splitWords performs basic whitespace splitting and splits punctuation into
// standalone tokens.
func splitWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
