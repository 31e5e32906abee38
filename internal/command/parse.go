package command

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Range is a half-open byte range [Start, End) into a text.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (r Range) Len() int {
	return r.End - r.Start
}

// Text returns the part of text covered by r.
func (r Range) Text(text string) string {
	return text[r.Start:r.End]
}

// Parsed holds the ranges of a recognized command line. When Ok is false
// every range is the zero Range.
type Parsed struct {
	Prefix Range
	Name   Range
	Args   Range
	Ok     bool
}

// TryParse recognizes "<ws><prefix><ws><name><ws><args><ws>" inside r. The
// name runs to the first whitespace or to the end of r and may be empty
// while the user is still typing. Args are trimmed; without arguments the
// range is empty and sits where arguments would begin.
func TryParse(text string, r Range, prefix string) Parsed {
	start := skipSpace(text, r.Start, r.End)
	if !strings.HasPrefix(text[start:r.End], prefix) {
		return Parsed{}
	}
	prefixEnd := start + len(prefix)
	nameStart := skipSpace(text, prefixEnd, r.End)
	nameEnd := indexSpace(text, nameStart, r.End)
	argsStart := skipSpace(text, nameEnd, r.End)
	argsEnd := trimSpaceRight(text, argsStart, r.End)
	return Parsed{
		Prefix: Range{Start: start, End: prefixEnd},
		Name:   Range{Start: nameStart, End: nameEnd},
		Args:   Range{Start: argsStart, End: argsEnd},
		Ok:     true,
	}
}

func skipSpace(text string, i, end int) int {
	for i < end {
		r, size := utf8.DecodeRuneInString(text[i:end])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func indexSpace(text string, i, end int) int {
	for i < end {
		r, size := utf8.DecodeRuneInString(text[i:end])
		if unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func trimSpaceRight(text string, start, end int) int {
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return end
}

// TryParseResetArguments parses the arguments of the reset command. Empty
// arguments reset with initialization, "noconfig" without it.
func TryParseResetArguments(args string) (initialize bool, ok bool) {
	switch strings.TrimSpace(args) {
	case "":
		return true, true
	case noConfigArg:
		return false, true
	}
	return false, false
}

// NoConfigPositions returns the byte offsets of every whitespace delimited
// "noconfig" word in args.
func NoConfigPositions(args string) []int {
	var out []int
	i := 0
	for i < len(args) {
		start := skipSpace(args, i, len(args))
		end := indexSpace(args, start, len(args))
		if args[start:end] == noConfigArg {
			out = append(out, start)
		}
		i = end
	}
	return out
}
