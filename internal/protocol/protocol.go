// Package protocol decodes UI surface requests and encodes host replies.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pkt.systems/rooboost/schema"
)

// Request is a decoded UI to host message.
type Request interface {
	Command() schema.Command
}

// LoadTasks asks for a rescan of the current source.
type LoadTasks struct{}

// SelectSource switches the current source and rescans.
type SelectSource struct {
	Source schema.SourceKey
}

// ViewTask asks the host to open a task directory as a workspace.
type ViewTask struct {
	TaskPath string
}

// MoveTasks asks the host to move task directories to another source.
type MoveTasks struct {
	TaskPaths    []string
	TargetSource schema.SourceKey
}

// DeleteTasks asks the host to delete task directories.
type DeleteTasks struct {
	TaskPaths []string
}

func (LoadTasks) Command() schema.Command    { return schema.CommandLoadTasks }
func (SelectSource) Command() schema.Command { return schema.CommandSelectSource }
func (ViewTask) Command() schema.Command     { return schema.CommandViewTask }
func (MoveTasks) Command() schema.Command    { return schema.CommandMoveTasks }
func (DeleteTasks) Command() schema.Command  { return schema.CommandDeleteTasks }

// Decode parses a raw message. The payload may be a JSON object or a JSON
// string holding the serialized object.
func Decode(raw []byte) (Request, error) {
	fields, err := envelope(raw)
	if err != nil {
		return nil, err
	}
	command, err := stringField(fields, "command", true)
	if err != nil {
		return nil, err
	}
	switch schema.Command(command) {
	case schema.CommandLoadTasks:
		return LoadTasks{}, nil
	case schema.CommandSelectSource:
		source, err := stringField(fields, "source", true)
		if err != nil {
			return nil, err
		}
		return SelectSource{Source: schema.SourceKey(source)}, nil
	case schema.CommandViewTask:
		path, err := stringField(fields, "taskPath", true)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: taskPath is empty", schema.ErrInvalidRequest)
		}
		return ViewTask{TaskPath: path}, nil
	case schema.CommandMoveTasks:
		paths, err := pathsField(fields)
		if err != nil {
			return nil, err
		}
		target, err := stringField(fields, "targetSource", true)
		if err != nil {
			return nil, err
		}
		return MoveTasks{TaskPaths: paths, TargetSource: schema.SourceKey(target)}, nil
	case schema.CommandDeleteTasks:
		paths, err := pathsField(fields)
		if err != nil {
			return nil, err
		}
		return DeleteTasks{TaskPaths: paths}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", schema.ErrInvalidRequest, command)
	}
}

// EncodeRequest serializes a request in the wire form Decode accepts.
func EncodeRequest(req Request) ([]byte, error) {
	fields := map[string]any{"command": req.Command()}
	switch r := req.(type) {
	case SelectSource:
		fields["source"] = r.Source
	case ViewTask:
		fields["taskPath"] = r.TaskPath
	case MoveTasks:
		fields["taskPaths"] = r.TaskPaths
		fields["targetSource"] = r.TargetSource
	case DeleteTasks:
		fields["taskPaths"] = r.TaskPaths
	}
	return json.Marshal(fields)
}

// ShowTasks builds a task listing reply. Tasks are always encoded as an array.
func ShowTasks(tasks []schema.TaskRecord, debug string) schema.ShowTasks {
	if tasks == nil {
		tasks = []schema.TaskRecord{}
	}
	return schema.ShowTasks{Command: schema.CommandShowTasks, Tasks: tasks, Debug: debug}
}

// ShowError builds an error reply.
func ShowError(message, debug string) schema.ShowError {
	return schema.ShowError{Command: schema.CommandShowError, Message: message, Debug: debug}
}

// Encode serializes a reply as a JSON object.
func Encode(message any) ([]byte, error) {
	return json.Marshal(message)
}

// EncodeString serializes a reply as a JSON string holding the object.
func EncodeString(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(data))
}

// DecodeReply parses a host reply into schema.ShowTasks or schema.ShowError.
func DecodeReply(raw []byte) (any, error) {
	fields, err := envelope(raw)
	if err != nil {
		return nil, err
	}
	command, err := stringField(fields, "command", true)
	if err != nil {
		return nil, err
	}
	body, _ := json.Marshal(fields)
	switch schema.Command(command) {
	case schema.CommandShowTasks:
		var reply schema.ShowTasks
		if err := json.Unmarshal(body, &reply); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
		}
		return reply, nil
	case schema.CommandShowError:
		var reply schema.ShowError
		if err := json.Unmarshal(body, &reply); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
		}
		return reply, nil
	default:
		return nil, fmt.Errorf("%w: unknown reply %q", schema.ErrInvalidRequest, command)
	}
}

func envelope(raw []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty message", schema.ErrInvalidRequest)
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
		}
		trimmed = bytes.TrimSpace([]byte(inner))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: message is not an object", schema.ErrInvalidRequest)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, name string, required bool) (string, error) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		if required {
			return "", fmt.Errorf("%w: %s is required", schema.ErrInvalidRequest, name)
		}
		return "", nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", schema.ErrInvalidRequest, name)
	}
	return value, nil
}

func pathsField(fields map[string]json.RawMessage) ([]string, error) {
	raw, ok := fields["taskPaths"]
	if !ok {
		return nil, fmt.Errorf("%w: taskPaths is required", schema.ErrInvalidRequest)
	}
	var paths []string
	if err := json.Unmarshal(raw, &paths); err != nil {
		return nil, fmt.Errorf("%w: taskPaths must be an array of strings", schema.ErrInvalidRequest)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: taskPaths is empty", schema.ErrInvalidRequest)
	}
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: taskPaths contains an empty path", schema.ErrInvalidRequest)
		}
	}
	return paths, nil
}
