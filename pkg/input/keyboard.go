package input

// KeyEscape is the key code of ESC as returned by the debug window.
const KeyEscape = 27

// KeyEvent maps a debug window key code to an event. Codes with no binding
// (including -1 for "no key") report false.
func KeyEvent(key int) (Event, bool) {
	if key < 0 {
		return Event{}, false
	}
	e := Event{Source: "keyboard"}
	switch key & 0xFF {
	case KeyEscape:
		e.Name = Quit
	case 's':
		e.Name = SOSPress
	case 'h':
		e.Name = SOSTrigger
		e.Message = ManualHelpMessage
	case 't':
		e.Name = SpeechTest
	case 'm':
		e.Name = Mute
	case 'v':
		e.Name = NextVoice
	case '+', '=':
		e.Name = RateUp
	case '-':
		e.Name = RateDown
	case ']':
		e.Name = VolumeUp
	case '[':
		e.Name = VolumeDown
	case '1':
		e.Name, e.Value = SimDistance, 0.5
	case '2':
		e.Name, e.Value = SimDistance, 1.0
	case '3':
		e.Name, e.Value = SimDistance, 2.0
	case '0':
		e.Name = SimClear
	default:
		return Event{}, false
	}
	return e, true
}
