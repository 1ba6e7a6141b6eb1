package taskloader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"pkt.systems/rooboost/schema"
)

const (
	uiMessagesFile = "ui_messages.json"
	historyFile    = "api_conversation_history.json"

	// SummaryLimit is the maximum summary length in runes before the ellipsis.
	SummaryLimit = 120
	// NoMessage is the summary used when no first message is available.
	NoMessage = "No message available"
	// UnknownProject is the project name used when none can be derived.
	UnknownProject = "Unknown project"
)

var cwdPattern = regexp.MustCompile(`Current Working Directory \((.*)\)`)

// Summarize truncates text to SummaryLimit runes, appending "..." when truncated.
func Summarize(text string) string {
	if utf8.RuneCountInString(text) <= SummaryLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:SummaryLimit]) + "..."
}

// ProjectName derives the project from an environment-details text block.
// The result is the final path segment of the working directory.
func ProjectName(text string) (string, bool) {
	match := cwdPattern.FindStringSubmatch(text)
	if len(match) < 2 || match[1] == "" {
		return "", false
	}
	path := strings.TrimRight(match[1], `/\`)
	if path == "" {
		return "", false
	}
	idx := strings.LastIndexAny(path, `/\`)
	name := path[idx+1:]
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

type uiMessage struct {
	Text string `json:"text"`
}

type historyEntry struct {
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Text string `json:"text"`
}

// readSummary returns the first UI message summary. A missing file is not an error.
func readSummary(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, uiMessagesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NoMessage, nil
		}
		return NoMessage, fmt.Errorf("%w: %s: %v", schema.ErrMetadataParse, uiMessagesFile, err)
	}
	var messages []json.RawMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return NoMessage, fmt.Errorf("%w: %s: %v", schema.ErrMetadataParse, uiMessagesFile, err)
	}
	if len(messages) == 0 {
		return NoMessage, nil
	}
	// Only the first message matters; later entries may carry any shape.
	var first uiMessage
	if err := json.Unmarshal(messages[0], &first); err != nil || first.Text == "" {
		return NoMessage, nil
	}
	return Summarize(first.Text), nil
}

// readProject returns the project name from the conversation history.
func readProject(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, historyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return UnknownProject, nil
		}
		return UnknownProject, fmt.Errorf("%w: %s: %v", schema.ErrMetadataParse, historyFile, err)
	}
	var history []json.RawMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return UnknownProject, fmt.Errorf("%w: %s: %v", schema.ErrMetadataParse, historyFile, err)
	}
	if len(history) == 0 {
		return UnknownProject, nil
	}
	var first historyEntry
	if err := json.Unmarshal(history[0], &first); err != nil || len(first.Content) == 0 {
		return UnknownProject, nil
	}
	// content is either a block list or a plain string; only block lists carry the environment text.
	var blocks []contentBlock
	if err := json.Unmarshal(first.Content, &blocks); err != nil || len(blocks) < 2 {
		return UnknownProject, nil
	}
	name, ok := ProjectName(blocks[1].Text)
	if !ok {
		return UnknownProject, nil
	}
	return name, nil
}
