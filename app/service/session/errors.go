package session

import (
	"fmt"

	"github.com/samber/oops"
)

func systemAudioError(device string, err error) error {
	var public string

	if device != "" {
		public = fmt.Sprintf("Could not open the system audio device %q.\n\n"+
			"Check that the device is connected and not in exclusive use by another application. "+
			"List the available devices with ffmpeg and update live.system_audio_device if the name changed.", device)
	} else {
		public = "Could not capture system audio.\n\n" +
			"System audio is read from the default output monitor (loopback) source. " +
			"Make sure such a source exists and that this application is allowed to capture it, " +
			"or set live.system_audio_device to a specific input device."
	}

	return oops.
		Code("system_audio").
		With("device", device).
		Public(public).
		Wrapf(err, "failed to start system audio")
}

// publicMessage returns the user-facing part of an error, falling back to its text.
func publicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if public := oopsErr.Public(); public != "" {
			return public
		}
	}

	return err.Error()
}
