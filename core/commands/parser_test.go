package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNamed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"escape decodes", "key: a;;b;", map[string]string{"key": "a;b"}},
		{"two entries", "target: 123; reason: spam;", map[string]string{"target": "123", "reason": "spam"}},
		{"no spaces", "a:1;b:2;", map[string]string{"a": "1", "b": "2"}},
		{"optional marker", "topic?: hello;", map[string]string{"topic": "hello"}},
		{"space before colon", "name : x;", map[string]string{"name": "x"}},
		{"only one leading space stripped", "name:  x;", map[string]string{"name": " x"}},
		{"two spaces before colon fail", "name  : x;", map[string]string{}},
		{"trailing spaces kept", "name: x  ;", map[string]string{"name": "x  "}},
		{"later key wins", "a: 1; a: 2;", map[string]string{"a": "2"}},
		{"missing terminator", "a: 1", map[string]string{}},
		{"value spans words", "reason: too many pings; x: y;", map[string]string{"reason": "too many pings", "x": "y"}},
		{"backs off to last pair", "a: x;;y", map[string]string{"a": "x"}},
		{"odd run of semicolons", "a: x;;;", map[string]string{"a": "x;"}},
		{"junk before entry", "please set topic: hi;", map[string]string{"topic": "hi"}},
		{"multiline value", "body: line one\nline two;", map[string]string{"body": "line one\nline two"}},
		{"empty value", "a: ;", map[string]string{"a": ""}},
		{"non ascii key skipped", "ключ: v; ok: w;", map[string]string{"ok": "w"}},
		{"empty input", "", map[string]string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseNamed(tc.raw))
		})
	}
}

func TestParseNamedDeterministic(t *testing.T) {
	raw := "a: 1;; b: 2; c: 3;"
	first := ParseNamed(raw)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ParseNamed(raw))
	}
	assert.Equal(t, map[string]string{"a": "1; b: 2", "c": "3"}, first)
}

func TestMatchPrefix(t *testing.T) {
	cases := []struct {
		name, content, prefix string
		token, raw            string
		ok                    bool
	}{
		{"simple", "!kick target: 1;", "!", "kick", "target: 1;", true},
		{"no args", "!ping", "!", "ping", "", true},
		{"case insensitive prefix", "TB!help new", "tb!", "help", "new", true},
		{"regex metacharacters literal", "$.*help", "$.*", "help", "", true},
		{"metacharacters do not act as regex", "x*help", ".*", "", "", false},
		{"no prefix", "hello !kick", "!", "", "", false},
		{"prefix alone", "! kick", "!", "", "", false},
		{"second line", "hello\n!ping now", "!", "ping", "hello\n now", true},
		{"multi char prefix", "--new  topic ", "--", "new", "topic", true},
		{"empty prefix never matches", "anything", "", "", "", false},
		{"token keeps case", "!Kick", "!", "Kick", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, raw, ok := MatchPrefix(tc.content, tc.prefix)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
			assert.Equal(t, tc.raw, raw)
		})
	}
}

func TestValidatePositional(t *testing.T) {
	d := &Descriptor{Args: []Arg{{Name: "a", Required: true}, {Name: "b", Required: true}, {Name: "c"}}}
	assert.Equal(t, 2, d.RequiredArgs())

	have, need, ok := ValidatePositional(d, "foo")
	assert.False(t, ok)
	assert.Equal(t, 1, have)
	assert.Equal(t, 2, need)

	_, _, ok = ValidatePositional(d, "foo bar")
	assert.True(t, ok)

	_, _, ok = ValidatePositional(d, "  foo    bar  ")
	assert.True(t, ok)

	have, need, ok = ValidatePositional(&Descriptor{}, "")
	assert.True(t, ok)
	assert.Zero(t, have)
	assert.Zero(t, need)
}

func TestValidateNamed(t *testing.T) {
	args := []Arg{{Name: "target", Required: true}, {Name: "reason"}}

	assert.Equal(t, []string{"target"}, ValidateNamed(args, ParseNamed("other: 1;")))
	assert.Empty(t, ValidateNamed(args, ParseNamed("target: 1;")))
	assert.Empty(t, ValidateNamed(args, ParseNamed("target: ;")), "present but empty counts as present")
}
