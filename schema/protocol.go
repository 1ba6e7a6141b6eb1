package schema

// Command tags a protocol message.
type Command string

// UI to host commands.
const (
	CommandLoadTasks    Command = "loadTasks"
	CommandSelectSource Command = "selectSource"
	CommandViewTask     Command = "viewTask"
	CommandMoveTasks    Command = "moveTasks"
	CommandDeleteTasks  Command = "deleteTasks"
)

// Host to UI commands.
const (
	CommandShowTasks Command = "showTasks"
	CommandShowError Command = "showError"
)

// ShowTasks carries a scan result to the UI surface.
type ShowTasks struct {
	Command Command      `json:"command"`
	Tasks   []TaskRecord `json:"tasks"`
	Debug   string       `json:"debug,omitempty"`
}

// ShowError carries a user-facing failure to the UI surface.
type ShowError struct {
	Command Command `json:"command"`
	Message string  `json:"message"`
	Debug   string  `json:"debug,omitempty"`
}

// IntentKind names a filesystem mutation the host is asked to perform.
type IntentKind string

const (
	// IntentMove asks the host to move task directories to another source.
	IntentMove IntentKind = "move"
	// IntentDelete asks the host to delete task directories.
	IntentDelete IntentKind = "delete"
)

// Intent is a validated move or delete request forwarded verbatim to the host.
type Intent struct {
	Kind         IntentKind `json:"kind"`
	Panel        PanelID    `json:"panel,omitempty"`
	TaskPaths    []string   `json:"taskPaths"`
	TargetSource SourceKey  `json:"targetSource,omitempty"`
}
