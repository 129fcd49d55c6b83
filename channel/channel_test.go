package channel

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{
			name: "empty",
			in:   "",
			want: nil,
		},
		{
			name: "whitespace only",
			in:   " \n\t",
			want: nil,
		},
		{
			name: "no tags falls back to final",
			in:   "  plain answer \n",
			want: []Segment{{Final, "plain answer"}},
		},
		{
			name: "analysis then final",
			in:   "<|channel|>analysis<|message|>think hard<|end|><|start|>assistant<|channel|>final<|message|>42",
			want: []Segment{{Analysis, "think hard"}, {Final, "42"}},
		},
		{
			name: "text outside regions is unknown",
			in:   "preamble <|channel|>final<|message|>answer<|end|> trailing",
			want: []Segment{{Unknown, "preamble"}, {Final, "answer"}, {Unknown, "trailing"}},
		},
		{
			name: "region without end runs to end of input",
			in:   "<|channel|>analysis<|message|>still going",
			want: []Segment{{Analysis, "still going"}},
		},
		{
			name: "unterminated region stops at next header",
			in:   "<|channel|>analysis<|message|>a<|channel|>final<|message|>b",
			want: []Segment{{Analysis, "a"}, {Final, "b"}},
		},
		{
			name: "recipient and constraint in header",
			in:   "<|channel|>commentary to=functions.exec <|constrain|>json<|message|>{\"kind\":\"shell\"}<|call|>",
			want: []Segment{{Commentary, `{"kind":"shell"}`}},
		},
		{
			name: "empty regions are dropped",
			in:   "<|channel|>analysis<|message|>   <|end|><|channel|>final<|message|>done<|return|>",
			want: []Segment{{Final, "done"}},
		},
		{
			name: "role header between regions is not unknown text",
			in:   "<|start|>assistant<|channel|>final<|message|>x<|end|>",
			want: []Segment{{Final, "x"}},
		},
		{
			name: "header without message tag stays unknown",
			in:   "<|channel|>analysis thinking<|end|><|channel|>final<|message|>hi",
			want: []Segment{{Unknown, "analysis thinking"}, {Final, "hi"}},
		},
		{
			name: "header cut off by next role header",
			in:   "<|channel|>analysis<|start|>assistant<|channel|>final<|message|>ok<|return|>",
			want: []Segment{{Unknown, "analysis"}, {Final, "ok"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Split() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitIsTotal(t *testing.T) {
	inputs := []string{
		"x",
		"<|channel|>",
		"<|channel|>final",
		"<|message|>orphan",
		"<|channel|> <|message|>no name",
		"<|end|><|end|>text",
	}
	for _, in := range inputs {
		assert.NotEmpty(t, Split(in), "input %q", in)
	}
}

func TestSplitReconstructsUntaggedContent(t *testing.T) {
	parts := []Segment{{Analysis, "first thought"}, {Commentary, "calling a tool"}, {Final, "the answer"}}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("<|start|>assistant<|channel|>" + p.Channel + "<|message|>" + p.Text + "<|end|>")
	}
	got := Split(b.String())
	assert.Equal(t, parts, got)

	var texts []string
	for _, s := range got {
		texts = append(texts, s.Text)
	}
	again := Split(strings.Join(texts, "\n"))
	assert.Equal(t, []Segment{{Final, "first thought\ncalling a tool\nthe answer"}}, again)
}

func TestText(t *testing.T) {
	segs := []Segment{{Analysis, "a"}, {Final, "b"}, {Final, "c"}}
	assert.Equal(t, "b\nc", Text(segs, Final))
	assert.Equal(t, "", Text(segs, Commentary))
}
