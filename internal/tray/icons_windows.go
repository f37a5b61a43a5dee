package tray

import _ "embed"

var (
	//go:embed icon/idle.ico
	iconIdle []byte
	//go:embed icon/recording.ico
	iconRecording []byte
	//go:embed icon/paused.ico
	iconPaused []byte
)
