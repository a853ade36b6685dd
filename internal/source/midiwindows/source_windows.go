//go:build windows
// +build windows

// Package midiwindows reads a winmm MIDI input device on Windows.
package midiwindows

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/midibridge/internal/source"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIIN windows.Handle

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// Load the winmm.dll library and required functions
var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// midiInCallback is created once; windows.NewCallback has a process-wide limit.
var midiInCallbackPtr = windows.NewCallback(midiInCallback)

// Source queues short messages from a winmm input device.
type Source struct {
	*source.Inbox
	logger contracts.Logger
	clock  contracts.Clock
	mu     sync.Mutex
	handle HMIDIIN
}

// Open opens and starts the input device at index.
func Open(index int, clock contracts.Clock, logger contracts.Logger) (*Source, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	if numDevices := int(r0); index < 0 || index >= numDevices {
		logger.Error("invalid MIDI device",
			logger.Field().Int("index", index),
			logger.Field().Int("devices", numDevices))
		return nil, fmt.Errorf("invalid MIDI device %d: %d devices present", index, numDevices)
	}

	s := &Source{Inbox: source.NewInbox(0), logger: logger, clock: clock}

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&s.handle)),
		uintptr(index),
		midiInCallbackPtr,
		uintptr(unsafe.Pointer(s)),
		uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
	)
	if r1 != 0 {
		logger.Error("failed to open MIDI device", logger.Field().Int("index", index), logger.Field().Error("error", err))
		return nil, fmt.Errorf("failed to open MIDI device %d: %v", index, err)
	}

	r1, _, err = procMidiInStart.Call(uintptr(s.handle))
	if r1 != 0 {
		procMidiInClose.Call(uintptr(s.handle))
		return nil, fmt.Errorf("failed to start MIDI capture: %v", err)
	}

	logger.Info("MIDI device connected", logger.Field().Int("index", index))
	return s, nil
}

// midiInCallback runs on a winmm thread.
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	s := (*Source)(unsafe.Pointer(dwInstance))

	switch wMsg {
	case MIM_OPEN:
		s.logger.Debug("MIDI device opened")
	case MIM_CLOSE:
		s.logger.Debug("MIDI device closed")
	case MIM_DATA:
		msg := shortMessage(uint32(dwParam1))
		if len(msg) == 0 {
			return 0
		}
		if !s.Push(contracts.RawEvent{Msg: msg}) {
			s.logger.Warn("MIDI inbox full or closed; dropping message")
		}
	case MIM_ERROR, MIM_LONGERROR:
		s.logger.Error("MIDI input error", s.logger.Field().Int("msg", int(wMsg)))
	case MIM_MOREDATA:
		s.logger.Debug("Received MIM_MOREDATA message; ignored")
	}
	return 0
}

// shortMessage unpacks a packed winmm short message into its status and data bytes.
func shortMessage(packed uint32) []byte {
	status := byte(packed & 0xFF)
	length := source.MessageLength(status)
	if length == 0 {
		return nil
	}
	data := []byte{status, byte(packed >> 8 & 0xFF), byte(packed >> 16 & 0xFF)}
	return data[:length]
}

// Now reads the clock batches are stamped with.
func (s *Source) Now() contracts.Instant {
	return s.clock.Now()
}

// Close stops capture and releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return nil
	}

	if r1, _, err := procMidiInStop.Call(uintptr(s.handle)); r1 != 0 {
		s.logger.Error("failed to stop MIDI capture", s.logger.Field().Error("error", err))
	}
	r1, _, err := procMidiInClose.Call(uintptr(s.handle))
	s.handle = 0
	s.Inbox.Close()
	if r1 != 0 {
		return fmt.Errorf("failed to close MIDI device: %v", err)
	}
	s.logger.Info("MIDI capture stopped and device closed")
	return nil
}
