package tui

import "meetassist/app/service/queue"

// NoticeMsg forwards a service notice into the program.
type NoticeMsg struct {
	Notice queue.Notice
}

// ActionResultMsg is returned by commands that call into the session.
type ActionResultMsg struct {
	Info string
	Err  error
}

// ClearMessageMsg clears the info line after a timeout.
type ClearMessageMsg struct {
	Seq int
}
