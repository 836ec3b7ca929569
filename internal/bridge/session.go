package bridge

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discordplex/discordplex/internal/config"
	"github.com/discordplex/discordplex/internal/personaplex"
	"github.com/discordplex/discordplex/pkg/audio"
	"github.com/discordplex/discordplex/pkg/util"
)

// textIdleFlush bounds how long buffered AI text waits before being flushed
// even without a natural break.
const textIdleFlush = time.Second

// session runs the three pumps of one live bridge session. The uplink pump
// ticks every frame period regardless of participant activity, the downlink
// pump drains backend audio into the playback queue, and the text pump
// accumulates fragments into readable chunks.
type session struct {
	logger *zap.Logger
	client BackendClient
	texts  TextSink
	errs   ErrorSink

	mixer  *audio.Mixer
	conv   *audio.Converter
	output *FrameQueue

	flushRunes int

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	finished atomic.Bool
}

func newSession(logger *zap.Logger, cfg *config.Config, client BackendClient, texts TextSink, errs ErrorSink) (*session, error) {
	conv, err := audio.NewConverter()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		logger:     logger,
		client:     client,
		texts:      texts,
		errs:       errs,
		mixer:      audio.NewMixer(cfg.Bridge.InputQueueFrames),
		conv:       conv,
		output:     NewFrameQueue(cfg.Bridge.OutputQueueFrames),
		flushRunes: cfg.Bridge.TextFlushRunes,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

func (s *session) start() {
	go s.run()
}

func (s *session) run() {
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error { return s.sendPump(ctx) })
	g.Go(func() error { return s.receivePump(ctx) })
	g.Go(func() error { return s.textPump(ctx) })

	err := g.Wait()
	s.client.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Session terminated", zap.Error(err))
		if s.errs != nil {
			s.errs.ReportError(err)
		}
	}

	s.finished.Store(true)
	close(s.done)
}

func (s *session) stop() {
	s.cancel()
	<-s.done
}

func (s *session) closed() bool {
	return s.finished.Load()
}

func (s *session) submit(participant string, frame audio.Frame) {
	if s.mixer.Submit(participant, frame) {
		s.logger.Debug("Dropped oldest capture frame", zap.String("participant", participant))
	}
}

// sendPump uplinks one frame every frame period. When no participant has
// audio pending the mix is silence, keeping the backend's input clock steady.
func (s *session) sendPump(ctx context.Context) error {
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		packets, err := s.conv.ToBackend(s.mixer.Mix())
		if err != nil {
			return err
		}
		for _, pkt := range packets {
			if err := s.client.SendAudio(ctx, pkt); err != nil {
				return err
			}
		}
	}
}

// receivePump drains backend audio into the playback queue. Frames beyond the
// queue bound are discarded so playback latency stays bounded.
func (s *session) receivePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-s.client.Audio():
			if !ok {
				return personaplex.ErrClientClosed
			}
			frames, err := s.conv.FromBackend(pkt)
			if err != nil {
				// A corrupted downlink stream cannot be resynchronized;
				// the session ends rather than play garbage.
				return err
			}
			for _, frame := range frames {
				if s.output.PushDropNewest(frame) {
					s.logger.Warn("Playback queue full, dropping frame")
				}
			}
		}
	}
}

// textPump accumulates text fragments and flushes them at word boundaries,
// when the buffer grows long, or after a quiet second.
func (s *session) textPump(ctx context.Context) error {
	debouncer := util.NewDebouncer(textIdleFlush)
	defer debouncer.Stop()

	var buf strings.Builder
	runes := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		text := buf.String()
		buf.Reset()
		runes = 0
		if s.texts == nil {
			return
		}
		// The final flush can run after ctx is canceled.
		if err := s.texts.WriteText(context.Background(), text); err != nil {
			s.logger.Warn("Failed to deliver AI text", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case fragment, ok := <-s.client.Text():
			if !ok {
				flush()
				return personaplex.ErrClientClosed
			}
			buf.WriteString(fragment)
			runes += utf8.RuneCountInString(fragment)
			debouncer.Reset()
			if endsWithSpace(fragment) || runes >= s.flushRunes {
				flush()
			}
		case <-debouncer.C():
			flush()
		}
	}
}

func endsWithSpace(s string) bool {
	runes := []rune(s)
	return len(runes) > 0 && unicode.IsSpace(runes[len(runes)-1])
}
