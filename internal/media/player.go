package media

import (
	"context"
	"fmt"
	"sync"
)

type PlaybackHandle interface {
	Stop() error
	// Done is closed when playback ends, on its own or after Stop. May be nil.
	Done() <-chan struct{}
}

type Player interface {
	Play(ctx context.Context, source string) (PlaybackHandle, error)
}

// Playback keeps at most one attachment playing.
type Playback struct {
	player Player

	mu        sync.Mutex
	currentID string
	current   PlaybackHandle
}

func NewPlayback(player Player) *Playback {
	return &Playback{player: player}
}

// Play stops whatever is playing, then starts id.
func (p *Playback) Play(ctx context.Context, id string, source string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.player == nil {
		return fmt.Errorf("%w: no player", ErrUnavailable)
	}
	if err := p.stopLocked(); err != nil {
		return err
	}

	handle, err := p.player.Play(ctx, source)
	if err != nil {
		return fmt.Errorf("%w: start playback: %w", ErrUnavailable, err)
	}
	if handle == nil {
		return fmt.Errorf("%w: player returned no handle", ErrUnavailable)
	}

	p.current = handle
	p.currentID = id
	if done := handle.Done(); done != nil {
		go p.watch(handle, done)
	}
	return nil
}

// Playing returns the id of the attachment currently playing.
func (p *Playback) Playing() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentID, p.current != nil
}

func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Playback) Close() error {
	return p.Stop()
}

func (p *Playback) stopLocked() error {
	if p.current == nil {
		return nil
	}
	if err := p.current.Stop(); err != nil {
		return fmt.Errorf("stop playback of %s: %w", p.currentID, err)
	}
	p.current = nil
	p.currentID = ""
	return nil
}

func (p *Playback) watch(handle PlaybackHandle, done <-chan struct{}) {
	<-done
	p.mu.Lock()
	if p.current == handle {
		p.current = nil
		p.currentID = ""
	}
	p.mu.Unlock()
}
