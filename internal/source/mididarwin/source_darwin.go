//go:build darwin
// +build darwin

// Package mididarwin reads a CoreMIDI source endpoint on macOS.
package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midibridge/internal/source"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection issues.
var (
	ErrNoMIDIDevices       = errors.New("no MIDI devices found")
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Source connects an input port to one CoreMIDI endpoint. CoreMIDI calls back on its own
// thread; packets are queued in an inbox until the chain drains them.
type Source struct {
	*source.Inbox
	logger   contracts.Logger
	clock    contracts.Clock
	client   coremidi.Client
	port     coremidi.InputPort
	mu       sync.Mutex
	portConn internalPortConnection
}

// Open creates a CoreMIDI client called name and connects it to the endpoint at index.
func Open(name string, index int, clock contracts.Clock, logger contracts.Logger) (*Source, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}
	if index < 0 || index >= len(sources) {
		logger.Error(ErrInvalidMIDIDevice.Error(), logger.Field().Int("index", index))
		return nil, ErrInvalidMIDIDevice
	}

	client, err := coremidi.NewClient(name)
	if err != nil {
		return nil, err
	}

	s := &Source{
		Inbox:  source.NewInbox(0),
		logger: logger,
		clock:  clock,
		client: client,
	}

	s.port, err = coremidi.NewInputPort(client, "Input Port", s.handleMIDIMessage)
	if err != nil {
		logger.Error(ErrCreateInputPort.Error())
		return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}

	endpoint := sources[index]
	s.portConn, err = s.port.Connect(endpoint)
	if err != nil {
		logger.Error(ErrMIDIConnectionError.Error())
		return nil, fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}

	logger.Info("MIDI device connected",
		logger.Field().Int("index", index),
		logger.Field().String("deviceName", endpoint.Name()))
	return s, nil
}

// handleMIDIMessage runs on the CoreMIDI thread.
func (s *Source) handleMIDIMessage(_ coremidi.Source, packet coremidi.Packet) {
	if len(packet.Data) == 0 {
		return
	}
	if !s.Push(contracts.RawEvent{Msg: append([]byte(nil), packet.Data...)}) {
		s.logger.Warn("MIDI inbox full or closed; dropping packet")
	}
}

// Now reads the clock batches are stamped with.
func (s *Source) Now() contracts.Instant {
	return s.clock.Now()
}

// Close disconnects from the endpoint and closes the inbox.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.portConn != nil {
		s.portConn.Disconnect()
		s.portConn = nil
		s.logger.Info("MIDI device disconnected")
	}
	s.mu.Unlock()
	return s.Inbox.Close()
}
