package evidence

import "time"

// MlReport is the opaque output of the on-device classifier.
// Score and Confidence are both in [0,1].
type MlReport struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model,omitempty"`
}

// PrivacyEvent is a record from an external privacy sensor (camera, microphone,
// location access and similar). The engine only reads these as weak signals.
type PrivacyEvent struct {
	Package        string            `json:"package"`
	SourceID       string            `json:"source_id"`
	Type           string            `json:"type"`
	ResourceType   string            `json:"resource_type"`
	Timestamp      time.Time         `json:"timestamp"`
	Duration       *time.Duration    `json:"duration,omitempty"`
	Visibility     string            `json:"visibility,omitempty"`
	SessionContext string            `json:"session_context,omitempty"`
	Confidence     float64           `json:"confidence"`
	Priority       int               `json:"priority"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}
