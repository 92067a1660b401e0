// Package portaudio implements [audio.Platform] on the local sound card via
// PortAudio. Capture runs on its own goroutine and delivers mono int16 frames;
// playback is synchronous.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/pinocchio/pkg/audio"
)

var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
)

const (
	defaultSampleRate      = 16000
	defaultFramesPerBuffer = 1024
	defaultQueueFrames     = 64
)

// Option is a functional option for [Platform].
type Option func(*Platform)

// WithSampleRate sets the capture sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(p *Platform) { p.sampleRate = hz }
}

// WithOutputSampleRate sets the playback sample rate in Hz. Played frames are
// resampled to it.
func WithOutputSampleRate(hz int) Option {
	return func(p *Platform) { p.outputRate = hz }
}

// WithFramesPerBuffer sets the PortAudio buffer size in samples.
func WithFramesPerBuffer(n int) Option {
	return func(p *Platform) { p.framesPerBuffer = n }
}

// WithOutputDevice selects the playback device by name. Empty selects the
// system default.
func WithOutputDevice(name string) Option {
	return func(p *Platform) { p.outputDevice = name }
}

// Platform opens PortAudio devices.
type Platform struct {
	sampleRate      int
	outputRate      int
	framesPerBuffer int
	outputDevice    string
}

// New returns a Platform configured by opts.
func New(opts ...Option) *Platform {
	p := &Platform{
		sampleRate:      defaultSampleRate,
		framesPerBuffer: defaultFramesPerBuffer,
	}
	for _, o := range opts {
		o(p)
	}
	if p.outputRate <= 0 {
		p.outputRate = p.sampleRate
	}
	return p
}

// Connect implements [audio.Platform]. deviceID selects the capture device by
// case-insensitive name substring; "" or "default" selects the system default.
func (p *Platform) Connect(_ context.Context, deviceID string) (audio.Connection, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	c, err := p.open(deviceID)
	if err != nil {
		_ = pa.Terminate()
		return nil, err
	}
	return c, nil
}

func (p *Platform) open(deviceID string) (*Connection, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w: %w", audio.ErrDeviceUnavailable, err)
	}
	in, err := selectDevice(devices, deviceID, true)
	if err != nil {
		return nil, err
	}
	out, err := selectDevice(devices, p.outputDevice, false)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		inFormat:  audio.Format{SampleRate: p.sampleRate, Channels: 1},
		outFormat: audio.Format{SampleRate: p.outputRate, Channels: 1},
		inBuf:     make([]int16, p.framesPerBuffer),
		outBuf:    make([]int16, p.framesPerBuffer),
		frames:    make(chan audio.AudioFrame, defaultQueueFrames),
		done:      make(chan struct{}),
	}

	inParams := pa.LowLatencyParameters(in, nil)
	inParams.Input.Channels = 1
	inParams.SampleRate = float64(p.sampleRate)
	inParams.FramesPerBuffer = p.framesPerBuffer
	if c.in, err = pa.OpenStream(inParams, c.inBuf); err != nil {
		return nil, fmt.Errorf("portaudio: open input %q: %w: %w", in.Name, audio.ErrDeviceUnavailable, err)
	}

	outParams := pa.HighLatencyParameters(nil, out)
	outParams.Output.Channels = 1
	outParams.SampleRate = float64(p.outputRate)
	outParams.FramesPerBuffer = p.framesPerBuffer
	if c.out, err = pa.OpenStream(outParams, c.outBuf); err != nil {
		_ = c.in.Close()
		return nil, fmt.Errorf("portaudio: open output %q: %w: %w", out.Name, audio.ErrDeviceUnavailable, err)
	}

	if err := c.in.Start(); err != nil {
		_ = c.in.Close()
		_ = c.out.Close()
		return nil, fmt.Errorf("portaudio: start capture: %w: %w", audio.ErrDeviceUnavailable, err)
	}

	slog.Info("audio device opened", "input", in.Name, "output", out.Name,
		"input_format", c.inFormat, "output_format", c.outFormat)

	c.wg.Add(1)
	go c.capture()
	return c, nil
}

// selectDevice picks the device named by id among those with input (or
// output) channels. An empty id or "default" picks the host default.
func selectDevice(devices []*pa.DeviceInfo, id string, input bool) (*pa.DeviceInfo, error) {
	usable := func(d *pa.DeviceInfo) bool {
		if input {
			return d.MaxInputChannels > 0
		}
		return d.MaxOutputChannels > 0
	}
	kind := "output"
	if input {
		kind = "input"
	}

	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, "default") {
		var (
			d   *pa.DeviceInfo
			err error
		)
		if input {
			d, err = pa.DefaultInputDevice()
		} else {
			d, err = pa.DefaultOutputDevice()
		}
		if err == nil && d != nil && usable(d) {
			return d, nil
		}
		for _, d := range devices {
			if usable(d) {
				return d, nil
			}
		}
		return nil, fmt.Errorf("portaudio: no %s device: %w", kind, audio.ErrDeviceUnavailable)
	}

	for _, d := range devices {
		if usable(d) && strings.Contains(strings.ToLower(d.Name), strings.ToLower(id)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no %s device matching %q: %w", kind, id, audio.ErrDeviceUnavailable)
}

// Connection is an open pair of PortAudio streams.
type Connection struct {
	inFormat  audio.Format
	outFormat audio.Format

	in     *pa.Stream
	out    *pa.Stream
	inBuf  []int16
	outBuf []int16

	frames chan audio.AudioFrame
	done   chan struct{}
	wg     sync.WaitGroup

	playMu    sync.Mutex
	closeOnce sync.Once
}

// InputStream implements [audio.Connection].
func (c *Connection) InputStream() <-chan audio.AudioFrame { return c.frames }

// InputFormat implements [audio.Connection].
func (c *Connection) InputFormat() audio.Format { return c.inFormat }

func (c *Connection) capture() {
	defer c.wg.Done()
	defer close(c.frames)

	start := time.Now()
	dropped := 0
	for {
		if err := c.in.Read(); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if errors.Is(err, pa.InputOverflowed) {
				continue
			}
			slog.Error("audio capture stopped", "err", err)
			return
		}

		frame := audio.AudioFrame{
			Data:       audio.FromSamples(c.inBuf),
			SampleRate: c.inFormat.SampleRate,
			Channels:   1,
			Timestamp:  time.Since(start),
		}
		select {
		case <-c.done:
			return
		case c.frames <- frame:
		default:
			dropped++
			if dropped%100 == 1 {
				slog.Debug("audio capture queue full, dropping frames", "dropped", dropped)
			}
		}
	}
}

// Play implements [audio.Connection]. Calls are serialized.
func (c *Connection) Play(ctx context.Context, frame audio.AudioFrame) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	select {
	case <-c.done:
		return errors.New("portaudio: play on closed connection")
	default:
	}

	samples := audio.Samples(audio.Convert(frame, c.outFormat).Data)
	if len(samples) == 0 {
		return nil
	}
	if err := c.out.Start(); err != nil {
		return fmt.Errorf("portaudio: start playback: %w", err)
	}
	// Stop blocks until queued buffers have been played.
	defer func() { _ = c.out.Stop() }()

	for off := 0; off < len(samples); off += len(c.outBuf) {
		if err := ctx.Err(); err != nil {
			_ = c.out.Abort()
			return err
		}
		n := copy(c.outBuf, samples[off:])
		clear(c.outBuf[n:])
		if err := c.out.Write(); err != nil && !errors.Is(err, pa.OutputUnderflowed) {
			return fmt.Errorf("portaudio: write: %w", err)
		}
	}
	return nil
}

// Disconnect implements [audio.Connection].
func (c *Connection) Disconnect() error {
	var errs []error
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.in.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: stop input: %w", err))
		}
		c.wg.Wait()

		c.playMu.Lock()
		defer c.playMu.Unlock()
		if err := c.in.Close(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: close input: %w", err))
		}
		if err := c.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: close output: %w", err))
		}
		if err := pa.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("portaudio: terminate: %w", err))
		}
	})
	return errors.Join(errs...)
}
