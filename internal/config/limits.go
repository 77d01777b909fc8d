package config

import "time"

const (
	// MaxCanvasTitleLength is the maximum length for canvas titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxCanvasTitleLength = 255

	// MaxFolderNameLength is the maximum length for folder names.
	// Same as canvas titles for consistency.
	MaxFolderNameLength = 255

	// DefaultCanvasTitle is used for canvases the workspace creates on its own
	// (first run, or after the last canvas was deleted).
	DefaultCanvasTitle = "Untitled canvas"

	// DefaultMaxLoadedCanvases bounds how many canvases keep their full
	// content in memory at once.
	DefaultMaxLoadedCanvases = 3

	// DefaultAutoOpenDwell is how long a drag must hover a closed folder
	// before it opens.
	DefaultAutoOpenDwell = 600 * time.Millisecond

	// DefaultDragSettleDelay suppresses folder auto-open/close after a drop
	// while optimistic state and backend confirmation settle.
	DefaultDragSettleDelay = 300 * time.Millisecond

	// DefaultDeleteSettleDelay keeps the deletion gate closed for a moment
	// after a replacement canvas is chosen.
	DefaultDeleteSettleDelay = 500 * time.Millisecond

	// DefaultEventReplay is how many recent events a session keeps for
	// clients resuming their event stream with Last-Event-ID.
	DefaultEventReplay = 64

	// MaxLogFiles is how many timestamped log files SetupLogFile keeps.
	MaxLogFiles = 10

	// ContentSchemaVersion is stamped on locally stored content records.
	ContentSchemaVersion = 1
)
