package source

// MessageLength returns the length in bytes of a MIDI message starting with status,
// or 0 when status is not a status byte. SysEx has no fixed length and reports 0 too.
func MessageLength(status byte) int {
	switch {
	case status < 0x80:
		return 0
	case status < 0xC0, status >= 0xE0 && status < 0xF0:
		return 3
	case status < 0xE0:
		return 2
	}
	switch status {
	case 0xF0:
		return 0
	case 0xF1, 0xF3:
		return 2
	case 0xF2:
		return 3
	}
	return 1
}

// Splitter cuts a raw MIDI byte stream into whole messages. It only finds message
// boundaries: running status is expanded, real-time bytes come out on their own, a
// SysEx message comes out as one unit, and a message split across reads is held until
// its last byte arrives. The zero value is ready to use; it is not safe for concurrent use.
type Splitter struct {
	running byte
	partial []byte
	sysex   bool
}

// Feed consumes data and calls emit once per complete message, in stream order.
// emit owns the slice it receives.
func (s *Splitter) Feed(data []byte, emit func(msg []byte)) {
	for _, b := range data {
		switch {
		case b >= 0xF8:
			emit([]byte{b})
		case b == 0xF7:
			if s.sysex {
				emit(append(s.partial, b))
				s.partial = nil
				s.sysex = false
			}
		case b == 0xF0:
			s.partial = []byte{b}
			s.sysex = true
			s.running = 0
		case s.sysex && b < 0x80:
			s.partial = append(s.partial, b)
		case b >= 0x80:
			// an unterminated SysEx is dropped when another status byte starts
			s.sysex = false
			s.partial = []byte{b}
			if b < 0xF0 {
				s.running = b
			} else {
				s.running = 0
			}
			s.complete(emit)
		default:
			if len(s.partial) == 0 {
				if s.running == 0 {
					continue
				}
				s.partial = []byte{s.running}
			}
			s.partial = append(s.partial, b)
			s.complete(emit)
		}
	}
}

func (s *Splitter) complete(emit func(msg []byte)) {
	if len(s.partial) == MessageLength(s.partial[0]) {
		emit(s.partial)
		s.partial = nil
	}
}
