// Package channel splits Harmony-formatted assistant text into its
// channel regions.
//
// A region looks like
//
//	<|start|>assistant<|channel|>analysis<|message|>thinking...<|end|>
//
// and runs until an end tag, the next header, or the end of input.
package channel

import (
	"strings"
)

// Well known channel names.
const (
	Analysis   = "analysis"
	Commentary = "commentary"
	Final      = "final"
	Unknown    = "unknown"
)

const (
	tagStart   = "<|start|>"
	tagChannel = "<|channel|>"
	tagMessage = "<|message|>"
)

// terminators end a region's text. Headers of the next region terminate it
// too so regions never overlap.
var terminators = []string{"<|end|>", "<|return|>", "<|call|>", tagStart, tagChannel}

var controlTokens = []string{"<|end|>", "<|return|>", "<|call|>", "<|constrain|>", tagMessage, tagChannel}

// Segment is a run of text attributed to one channel.
type Segment struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Split returns the segments of content in order of appearance. Text outside
// any region is attributed to Unknown; input without any region becomes a
// single Final segment.
func Split(content string) []Segment {
	var (
		segs    []Segment
		matched bool
		rest    = content
	)

	for {
		open := strings.Index(rest, tagChannel)
		if open < 0 {
			break
		}
		header := rest[open+len(tagChannel):]
		bound, _ := nextTerminator(header)
		msg := strings.Index(header[:bound], tagMessage)
		if msg < 0 {
			if bound == len(header) {
				break
			}
			// Header cut off before its message tag; keep it as stray text.
			segs = appendUnknown(segs, rest[:open+len(tagChannel)+bound])
			rest = header[bound:]
			continue
		}
		name := channelName(header[:msg])
		if name == "" {
			// Not a usable header; treat the tag as plain text and move on.
			segs = appendUnknown(segs, rest[:open+len(tagChannel)])
			rest = header
			continue
		}

		segs = appendUnknown(segs, rest[:open])
		body := header[msg+len(tagMessage):]
		end, skip := nextTerminator(body)
		segs = appendSegment(segs, name, body[:end])
		matched = true
		rest = body[end+skip:]
	}

	if !matched {
		if t := strings.TrimSpace(content); t != "" {
			return []Segment{{Channel: Final, Text: t}}
		}
		return nil
	}
	return appendUnknown(segs, rest)
}

// Text returns the concatenated text of every segment on channel name.
func Text(segs []Segment, name string) string {
	var parts []string
	for _, s := range segs {
		if s.Channel == name {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// channelName returns the first word of a header such as
// "commentary to=functions.exec <|constrain|>json".
func channelName(header string) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if i := strings.Index(name, "<|"); i >= 0 {
		name = name[:i]
	}
	return name
}

// nextTerminator returns where the region text ends and how many bytes of
// terminator to consume. Header tags are left in place for the next round.
func nextTerminator(body string) (int, int) {
	end, skip := len(body), 0
	for _, t := range terminators {
		i := strings.Index(body, t)
		if i < 0 || i >= end {
			continue
		}
		end = i
		skip = len(t)
		if t == tagStart || t == tagChannel {
			skip = 0
		}
	}
	return end, skip
}

func appendSegment(segs []Segment, name, text string) []Segment {
	text = strings.TrimSpace(text)
	if text == "" {
		return segs
	}
	return append(segs, Segment{Channel: name, Text: text})
}

func appendUnknown(segs []Segment, text string) []Segment {
	return appendSegment(segs, Unknown, stripControl(text))
}

// stripControl removes bare control tokens and "<|start|>role" headers.
func stripControl(text string) string {
	for {
		i := strings.Index(text, tagStart)
		if i < 0 {
			break
		}
		role := text[i+len(tagStart):]
		j := strings.Index(role, "<|")
		if j < 0 {
			j = len(role)
		}
		text = text[:i] + role[j:]
	}
	for _, tok := range controlTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	return text
}
