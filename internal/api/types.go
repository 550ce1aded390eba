package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a waiting or active request in a transport-friendly format.
type QueueItem struct {
	ID         string `json:"id"`
	Position   int    `json:"position"`
	Profile    string `json:"profile"`
	Requester  string `json:"requester"`
	Channel    string `json:"channel"`
	Text       string `json:"text"`
	Mode       string `json:"mode"`
	Assets     int    `json:"assets"`
	EnqueuedAt string `json:"enqueuedAt,omitempty"`
}

// QueueStatus captures queue occupancy. Active is the request the worker holds.
type QueueStatus struct {
	Capacity int         `json:"capacity"`
	Busy     bool        `json:"busy"`
	Active   *QueueItem  `json:"active,omitempty"`
	Waiting  []QueueItem `json:"waiting"`
}

// JobResult summarizes the most recent finished job.
type JobResult struct {
	RequestID  string `json:"requestId"`
	Profile    string `json:"profile"`
	Status     string `json:"status"`
	ErrorKind  string `json:"errorKind,omitempty"`
	Error      string `json:"error,omitempty"`
	Outputs    int    `json:"outputs"`
	DurationMS int64  `json:"durationMs"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// WorkerStatus mirrors the worker's runtime diagnostics.
type WorkerStatus struct {
	Running   bool       `json:"running"`
	Busy      bool       `json:"busy"`
	Stage     string     `json:"stage,omitempty"`
	ActiveID  string     `json:"activeId,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Last      *JobResult `json:"last,omitempty"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running           bool           `json:"running"`
	PID               int            `json:"pid"`
	HistoryDBPath     string         `json:"historyDbPath"`
	LockFilePath      string         `json:"lockFilePath"`
	Backend           string         `json:"backend"`
	Worker            WorkerStatus   `json:"worker"`
	Queue             QueueStatus    `json:"queue"`
	PendingAssemblies int            `json:"pendingAssemblies"`
	HistoryStats      map[string]int `json:"historyStats"`
}

// HistoryEntry is one finished job from the history ledger.
type HistoryEntry struct {
	RequestID     string `json:"requestId"`
	CorrelationID string `json:"correlationId,omitempty"`
	PromptID      string `json:"promptId,omitempty"`
	Profile       string `json:"profile"`
	Requester     string `json:"requester,omitempty"`
	Channel       string `json:"channel,omitempty"`
	Mode          string `json:"mode,omitempty"`
	OriginalText  string `json:"originalText,omitempty"`
	FinalText     string `json:"finalText,omitempty"`
	Status        string `json:"status"`
	ErrorKind     string `json:"errorKind,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	OutputCount   int    `json:"outputCount"`
	EnqueuedAt    string `json:"enqueuedAt,omitempty"`
	StartedAt     string `json:"startedAt,omitempty"`
	FinishedAt    string `json:"finishedAt"`
	DurationMS    int64  `json:"durationMs"`
}

// HistoryResponse wraps recent history entries, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// Profile describes a configured workflow profile.
type Profile struct {
	Alias           string   `json:"alias"`
	Default         bool     `json:"default"`
	PermissionLevel int      `json:"permissionLevel"`
	FilePath        string   `json:"filePath"`
	AssetSlots      []string `json:"assetSlots"`
	PromptNode      string   `json:"promptNode"`
	OutputNode      string   `json:"outputNode,omitempty"`
}

// ProfilesResponse lists profiles in configuration order.
type ProfilesResponse struct {
	Profiles []Profile `json:"profiles"`
}

// InteractionResponse reports how an inbound chat interaction was routed.
type InteractionResponse struct {
	Handled   bool   `json:"handled"`
	Outcome   string `json:"outcome,omitempty"`
	Message   string `json:"message,omitempty"`
	Position  int    `json:"position,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Profile   string `json:"profile,omitempty"`
}

// TestNotificationResponse reports the result of a test push.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
