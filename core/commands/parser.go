package commands

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MatchPrefix finds the first line of content that starts with prefix (case-insensitive)
// followed by a non-whitespace token. rawArgs is content with the first occurrence of
// prefix+token removed, trimmed. An empty prefix never matches.
func MatchPrefix(content, prefix string) (token, rawArgs string, ok bool) {
	if prefix == "" {
		return "", "", false
	}
	for start := 0; start <= len(content); {
		if matched, tok, found := matchAt(content, start, prefix); found {
			rawArgs = strings.TrimSpace(strings.Replace(content, matched, "", 1))
			return tok, rawArgs, true
		}
		next := strings.IndexAny(content[start:], "\n\r")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", "", false
}

func matchAt(content string, start int, prefix string) (matched, token string, ok bool) {
	end := start + len(prefix)
	if end > len(content) || !strings.EqualFold(content[start:end], prefix) {
		return "", "", false
	}
	tokEnd := end
	for tokEnd < len(content) {
		r, size := utf8.DecodeRuneInString(content[tokEnd:])
		if unicode.IsSpace(r) {
			break
		}
		tokEnd += size
	}
	if tokEnd == end {
		return "", "", false
	}
	return content[start:tokEnd], content[end:tokEnd], true
}

// ParseNamed extracts `key: value;` entries from raw.
//
// A key is a run of ASCII word characters, optionally followed by '?'. At most one
// whitespace character is allowed on each side of ':'. A value runs up to the first
// unescaped ';', where ";;" is an escaped ';'. Later keys overwrite earlier ones.
func ParseNamed(raw string) map[string]string {
	out := make(map[string]string)
	for pos := 0; pos < len(raw); {
		key, value, next, status := scanEntry(raw, pos)
		switch status {
		case scanMatched:
			out[key] = strings.ReplaceAll(value, ";;", ";")
			pos = next
		case scanExhausted:
			return out
		default:
			pos++
		}
	}
	return out
}

type scanStatus int

const (
	scanFailed scanStatus = iota
	scanMatched
	// scanExhausted means no ';' remains after the value start, so no later entry can match.
	scanExhausted
)

// scanEntry tries to match one entry starting exactly at pos. On success next is the
// index after the terminating ';'.
func scanEntry(s string, pos int) (key, value string, next int, status scanStatus) {
	i := pos
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	if i == pos {
		return "", "", 0, scanFailed
	}
	key = s[pos:i]
	if i < len(s) && s[i] == '?' {
		i++
	}
	i = skipOneSpace(s, i)
	if i >= len(s) || s[i] != ':' {
		return "", "", 0, scanFailed
	}
	i = skipOneSpace(s, i+1)

	valueStart := i
	lastPair := -1
	for i < len(s) {
		if s[i] != ';' {
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == ';' {
			lastPair = i
			i += 2
			continue
		}
		return key, s[valueStart:i], i + 1, scanMatched
	}
	if lastPair >= 0 {
		return key, s[valueStart:lastPair], lastPair + 1, scanMatched
	}
	return "", "", 0, scanExhausted
}

func skipOneSpace(s string, i int) int {
	if i >= len(s) {
		return i
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	if unicode.IsSpace(r) {
		return i + size
	}
	return i
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}

// ValidateNamed returns the names of required args absent from named.
func ValidateNamed(args []Arg, named map[string]string) []string {
	var missing []string
	for _, a := range args {
		if !a.Required {
			continue
		}
		if _, ok := named[a.Name]; !ok {
			missing = append(missing, a.Name)
		}
	}
	return missing
}

// ValidatePositional counts whitespace-separated words in raw against the
// required args of d.
func ValidatePositional(d *Descriptor, raw string) (have, need int, ok bool) {
	have = len(strings.Fields(raw))
	need = d.RequiredArgs()
	return have, need, have >= need
}
