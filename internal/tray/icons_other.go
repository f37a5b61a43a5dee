//go:build !windows

package tray

import _ "embed"

var (
	//go:embed icon/idle.png
	iconIdle []byte
	//go:embed icon/recording.png
	iconRecording []byte
	//go:embed icon/paused.png
	iconPaused []byte
)
