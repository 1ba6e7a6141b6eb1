package command

import (
	"strings"
)

// Command represents a parsed palette line.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse parses a line and returns a Command if it starts with "/".
// Operation ids are case sensitive, so the name keeps its case.
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	return parseRaw(trimmed[1:]), true
}

// ParseLine parses a palette line with or without the leading "/".
func ParseLine(input string) Command {
	if cmd, ok := Parse(input); ok {
		return cmd
	}
	return parseRaw(input)
}

func parseRaw(text string) Command {
	raw := strings.TrimSpace(text)
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{Name: "", Raw: raw}
	}
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return Command{
		Name:      fields[0],
		Args:      args,
		Raw:       raw,
		Remainder: remainderAfterTokens(raw, 1),
	}
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
