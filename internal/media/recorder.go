package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrUnavailable  = errors.New("media device unavailable")
	ErrInvalidState = errors.New("invalid media state")
)

type Clip struct {
	Path     string
	Duration time.Duration
}

// RecorderHandle is one acquisition of the recording device.
type RecorderHandle interface {
	Stop(ctx context.Context) (Clip, error)
	Release() error
}

type Recorder interface {
	Start(ctx context.Context) (RecorderHandle, error)
}

type RecordingState int

const (
	RecordingIdle RecordingState = iota
	RecordingActive
	RecordingStopped
)

func (s RecordingState) String() string {
	switch s {
	case RecordingActive:
		return "recording"
	case RecordingStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Recording drives a Recorder through idle -> recording -> stopped. Every
// successful Start is paired with exactly one Release of its handle.
type Recording struct {
	recorder Recorder

	mu      sync.Mutex
	state   RecordingState
	handle  RecorderHandle
	release func() error
}

func NewRecording(recorder Recorder) *Recording {
	return &Recording{recorder: recorder}
}

func (r *Recording) State() RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recording) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == RecordingActive {
		return fmt.Errorf("%w: already recording", ErrInvalidState)
	}
	if r.recorder == nil {
		return fmt.Errorf("%w: no recorder", ErrUnavailable)
	}

	handle, err := r.recorder.Start(ctx)
	if err != nil {
		return fmt.Errorf("%w: start recorder: %w", ErrUnavailable, err)
	}
	if handle == nil {
		return fmt.Errorf("%w: recorder returned no handle", ErrUnavailable)
	}

	r.handle = handle
	r.release = sync.OnceValue(handle.Release)
	r.state = RecordingActive
	return nil
}

// Stop ends the recording and releases the device, even when stopping fails.
func (r *Recording) Stop(ctx context.Context) (Clip, error) {
	r.mu.Lock()
	if r.state != RecordingActive {
		r.mu.Unlock()
		return Clip{}, fmt.Errorf("%w: not recording", ErrInvalidState)
	}
	handle, release := r.handle, r.release
	r.handle, r.release = nil, nil
	r.state = RecordingStopped
	r.mu.Unlock()

	clip, stopErr := handle.Stop(ctx)
	releaseErr := release()
	if stopErr != nil {
		return Clip{}, errors.Join(fmt.Errorf("stop recorder: %w", stopErr), releaseErr)
	}
	if releaseErr != nil {
		return clip, fmt.Errorf("release recorder: %w", releaseErr)
	}
	return clip, nil
}

// Cancel drops an active recording without producing a clip.
func (r *Recording) Cancel() error {
	r.mu.Lock()
	if r.state != RecordingActive {
		r.mu.Unlock()
		return nil
	}
	release := r.release
	r.handle, r.release = nil, nil
	r.state = RecordingIdle
	r.mu.Unlock()

	if err := release(); err != nil {
		return fmt.Errorf("release recorder: %w", err)
	}
	return nil
}

func (r *Recording) Close() error {
	return r.Cancel()
}
