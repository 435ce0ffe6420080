package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutMinListWidth keeps the list pane usable on narrow terminals.
	LayoutMinListWidth = 24
)

// Detail pane sizing.
const (
	// FormLyricsMinHeight is the smallest lyrics editor height.
	FormLyricsMinHeight = 3

	// TitleCharLimit caps the title input.
	TitleCharLimit = 200

	// LinkCharLimit caps the link input.
	LinkCharLimit = 500
)

// Timing constants.
const (
	// StatusTick refreshes relative times in the status bar.
	StatusTick = time.Second

	// NoticeTTL is how long a transient notice stays visible.
	NoticeTTL = 4 * time.Second
)
