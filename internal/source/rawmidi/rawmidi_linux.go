//go:build linux
// +build linux

// Package rawmidi reads an ALSA raw MIDI device node, e.g. /dev/snd/midiC1D0.
package rawmidi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midibridge/internal/source"
	"github.com/leandrodaf/midibridge/sdk/contracts"
	"golang.org/x/sys/unix"
)

const readSize = 256

// ErrOpenDevice is returned when the device node cannot be opened.
var ErrOpenDevice = errors.New("error opening raw MIDI device")

// Source polls a raw MIDI file descriptor. The byte stream is cut into one event per
// message; a message split across reads is held back until it is complete.
type Source struct {
	logger contracts.Logger
	clock  contracts.Clock

	mu     sync.Mutex
	fd     int
	closed bool
	buf    [readSize]byte
	split  source.Splitter
}

// Open opens the device node for non-blocking reads.
func Open(device string, clock contracts.Clock, logger contracts.Logger) (*Source, error) {
	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		logger.Error(ErrOpenDevice.Error(),
			logger.Field().String("device", device),
			logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w %s: %v", ErrOpenDevice, device, err)
	}
	logger.Info("raw MIDI device opened", logger.Field().String("device", device))
	return newFromFD(fd, clock, logger), nil
}

func newFromFD(fd int, clock contracts.Clock, logger contracts.Logger) *Source {
	return &Source{fd: fd, clock: clock, logger: logger}
}

func (s *Source) descriptor() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, contracts.ErrSourceClosed
	}
	return s.fd, nil
}

// Poll waits up to timeout for the device to become readable.
func (s *Source) Poll(timeout time.Duration) (bool, error) {
	fd, err := s.descriptor()
	if err != nil {
		return false, err
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("poll raw MIDI device: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 && fds[0].Revents&unix.POLLIN == 0 {
		return false, contracts.ErrSourceClosed
	}
	return fds[0].Revents&unix.POLLIN != 0, nil
}

// Drain reads until the device would block.
func (s *Source) Drain() ([]contracts.RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, contracts.ErrSourceClosed
	}

	var events []contracts.RawEvent
	emit := func(msg []byte) {
		events = append(events, contracts.RawEvent{Msg: msg})
	}
	for {
		n, err := unix.Read(s.fd, s.buf[:])
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			return events, nil
		case err != nil:
			return events, fmt.Errorf("read raw MIDI device: %w", err)
		case n == 0:
			if len(events) > 0 {
				return events, nil
			}
			return nil, contracts.ErrSourceClosed
		}
		s.split.Feed(s.buf[:n], emit)
	}
}

// Now reads the clock batches are stamped with.
func (s *Source) Now() contracts.Instant {
	return s.clock.Now()
}

// Close releases the descriptor. Further calls do nothing.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("raw MIDI device closed")
	return unix.Close(s.fd)
}
