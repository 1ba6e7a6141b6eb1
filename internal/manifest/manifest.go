// Package manifest loads declarative plugins from YAML or JSON files.
//
// A manifest names a plugin, lists its commands and its activate/deactivate
// hooks. Every command and hook is a list of whitelisted host actions, so
// loading a manifest never runs code.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pkt.systems/rooboost/schema"
)

// ActionKind names a whitelisted host action.
type ActionKind string

const (
	ActionShowInformation  ActionKind = "showInformation"
	ActionShowError        ActionKind = "showError"
	ActionOpenWorkspace    ActionKind = "openWorkspace"
	ActionAppendDiagnostic ActionKind = "appendDiagnostic"
	ActionExecuteCommand   ActionKind = "executeCommand"
)

// Action is one step of a command or lifecycle hook.
type Action struct {
	Action  ActionKind         `yaml:"action" json:"action"`
	Message string             `yaml:"message,omitempty" json:"message,omitempty"`
	Path    string             `yaml:"path,omitempty" json:"path,omitempty"`
	Channel string             `yaml:"channel,omitempty" json:"channel,omitempty"`
	Command schema.OperationID `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string           `yaml:"args,omitempty" json:"args,omitempty"`
}

// Command is a manifest-declared operation.
type Command struct {
	ID      schema.OperationID `yaml:"id" json:"id"`
	Title   string             `yaml:"title,omitempty" json:"title,omitempty"`
	Actions []Action           `yaml:"actions" json:"actions"`
}

// Manifest is a validated plugin description.
type Manifest struct {
	Name       schema.PluginName `yaml:"name" json:"name"`
	Version    string            `yaml:"version" json:"version"`
	Commands   []Command         `yaml:"commands" json:"commands"`
	Activate   []Action          `yaml:"activate" json:"activate"`
	Deactivate []Action          `yaml:"deactivate" json:"deactivate"`
}

// Load reads and validates the manifest at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read plugin manifest: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode validates the shape of data and decodes it. Shape problems are all
// reported together, wrapped in schema.ErrPluginShapeInvalid.
func Decode(data []byte) (Manifest, error) {
	unmarshal := yaml.Unmarshal
	if isJSON(data) {
		unmarshal = json.Unmarshal
	}
	var raw any
	if err := unmarshal(data, &raw); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", schema.ErrPluginShapeInvalid, err)
	}
	if problems := Validate(raw); len(problems) > 0 {
		return Manifest{}, fmt.Errorf("%w: %w", schema.ErrPluginShapeInvalid, errors.Join(problems...))
	}
	var m Manifest
	if err := unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", schema.ErrPluginShapeInvalid, err)
	}
	return m, nil
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Validate checks a generically decoded manifest and returns every problem found.
func Validate(raw any) []error {
	doc, ok := raw.(map[string]any)
	if !ok {
		return []error{errors.New("manifest must be a mapping")}
	}
	var v validator
	v.knownKeys("manifest", doc, "name", "version", "commands", "activate", "deactivate")
	v.requiredString("name", doc, "name")
	v.requiredString("version", doc, "version")

	commands, ok := doc["commands"].([]any)
	switch {
	case doc["commands"] == nil:
		v.addf("commands: required array")
	case !ok:
		v.addf("commands: must be an array")
	}
	seen := make(map[string]bool, len(commands))
	for i, item := range commands {
		where := fmt.Sprintf("commands[%d]", i)
		cmd, ok := item.(map[string]any)
		if !ok {
			v.addf("%s: must be a mapping", where)
			continue
		}
		v.knownKeys(where, cmd, "id", "title", "actions")
		if id, ok := v.requiredString(where+".id", cmd, "id"); ok {
			if seen[id] {
				v.addf("%s.id: duplicate command %q", where, id)
			}
			seen[id] = true
		}
		if title, present := cmd["title"]; present {
			if _, ok := title.(string); !ok {
				v.addf("%s.title: must be a string", where)
			}
		}
		v.actions(where+".actions", cmd["actions"], true)
	}
	v.actions("activate", doc["activate"], true)
	v.actions("deactivate", doc["deactivate"], true)
	return v.problems
}

type validator struct {
	problems []error
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) knownKeys(where string, m map[string]any, keys ...string) {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	for k := range m {
		if !allowed[k] {
			v.addf("%s: unknown field %q", where, k)
		}
	}
}

func (v *validator) requiredString(where string, m map[string]any, key string) (string, bool) {
	value, present := m[key]
	if !present || value == nil {
		v.addf("%s: required string", where)
		return "", false
	}
	s, ok := value.(string)
	if !ok {
		v.addf("%s: must be a string", where)
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		v.addf("%s: must not be empty", where)
		return "", false
	}
	return s, true
}

func (v *validator) actions(where string, value any, required bool) {
	if value == nil {
		if required {
			v.addf("%s: required action list", where)
		}
		return
	}
	list, ok := value.([]any)
	if !ok {
		v.addf("%s: must be an action list", where)
		return
	}
	for i, item := range list {
		v.action(fmt.Sprintf("%s[%d]", where, i), item)
	}
}

func (v *validator) action(where string, item any) {
	a, ok := item.(map[string]any)
	if !ok {
		v.addf("%s: must be a mapping", where)
		return
	}
	v.knownKeys(where, a, "action", "message", "path", "channel", "command", "args")
	kind, ok := v.requiredString(where+".action", a, "action")
	if !ok {
		return
	}
	switch ActionKind(kind) {
	case ActionShowInformation, ActionShowError:
		v.requiredString(where+".message", a, "message")
	case ActionAppendDiagnostic:
		v.requiredString(where+".message", a, "message")
		if ch, present := a["channel"]; present {
			if _, ok := ch.(string); !ok {
				v.addf("%s.channel: must be a string", where)
			}
		}
	case ActionOpenWorkspace:
		v.requiredString(where+".path", a, "path")
	case ActionExecuteCommand:
		v.requiredString(where+".command", a, "command")
		if args, present := a["args"]; present {
			list, ok := args.([]any)
			if !ok {
				v.addf("%s.args: must be an array of strings", where)
				return
			}
			for j, arg := range list {
				if _, ok := arg.(string); !ok {
					v.addf("%s.args[%d]: must be a string", where, j)
				}
			}
		}
	default:
		v.addf("%s.action: unsupported action %q", where, kind)
	}
}
