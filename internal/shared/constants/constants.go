package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// BodyCaptureLimitBytes caps how much of a fetched body is handed to the ML collaborator.
	BodyCaptureLimitBytes = 64 * 1024
	// TLSSoonExpiryWindow flags certificates that expire inside this window.
	TLSSoonExpiryWindow = 14 * 24 * time.Hour
	// DefaultFetchTimeout bounds a single network posture fetch.
	DefaultFetchTimeout = 10 * time.Second
	// SessionEventBuffer is the channel buffer for scan session events.
	SessionEventBuffer = 8
)
