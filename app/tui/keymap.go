package tui

const (
	keyQuit        = "q"
	keyQuitUpper   = "Q"
	keyCtrlC       = "ctrl+c"
	keySpace       = " "
	keyPause       = "p"
	keyMute        = "m"
	keySystemAudio = "a"
	keyExport      = "e"
	keyTab         = "tab"
	keyUp          = "up"
	keyDown        = "down"
	keyJ           = "j"
	keyK           = "k"
)
