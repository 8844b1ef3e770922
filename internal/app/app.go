// Package app wires the frame source, codec, pipeline and player into a
// single streaming run.
package app

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/vidflut/internal/cache"
	"github.com/llehouerou/vidflut/internal/codec"
	"github.com/llehouerou/vidflut/internal/config"
	"github.com/llehouerou/vidflut/internal/errmsg"
	"github.com/llehouerou/vidflut/internal/ffmpeg"
	"github.com/llehouerou/vidflut/internal/metrics"
	"github.com/llehouerou/vidflut/internal/pipeline"
	"github.com/llehouerou/vidflut/internal/player"
	"github.com/llehouerou/vidflut/internal/progress"
	"github.com/llehouerou/vidflut/internal/source"
)

// DefaultImageFPS is the rate of an image directory when fps is not set.
const DefaultImageFPS = 30

// DialFunc opens the connection to the canvas server.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Options are the collaborators of a run.
type Options struct {
	// Progress receives the compression progress bar; nil disables it.
	Progress io.Writer
	// Dial defaults to a TCP dial.
	Dial  DialFunc
	Tools ffmpeg.Tools
	Clock player.Clock
}

// App runs one configuration.
type App struct {
	cfg     *config.Config
	opts    Options
	metrics *metrics.Metrics
}

// New returns an app for a validated, target-resolved config.
func New(cfg *config.Config, opts Options) *App {
	if opts.Dial == nil {
		opts.Dial = dialTCP
	}
	if opts.Tools == (ffmpeg.Tools{}) {
		opts.Tools = ffmpeg.Default()
	}
	a := &App{cfg: cfg, opts: opts}
	if cfg.MetricsAddr != "" {
		a.metrics = metrics.New()
	}
	return a
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// Run opens the source, then compresses and streams it. An interrupted run
// (ctx cancelled) returns nil.
func (a *App) Run(ctx context.Context) error {
	if a.metrics != nil {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.MetricsAddr); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "App.Run",
					"error":    err,
				}).Error(errmsg.Format(errmsg.OpMetricsServe, err))
			}
		}()
	}

	src, err := a.openSource(ctx)
	if err != nil {
		return ignoreCancel(err)
	}
	meta := src.Metadata()

	factory, err := a.codecFactory(meta.FPS)
	if err != nil {
		return err
	}

	if a.cfg.JIT {
		err = a.playLive(ctx, src, factory)
	} else {
		err = a.playAheadOfTime(ctx, src, factory)
	}
	return ignoreCancel(err)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) codecFactory(fps float64) (codec.Factory, error) {
	alg, err := a.cfg.Algorithm()
	if err != nil {
		return nil, err
	}
	level, err := a.cfg.Level()
	if err != nil {
		return nil, err
	}
	return codec.NewFactory(codec.Options{
		Algorithm: alg,
		Level:     level,
		FPS:       fps,
		Debug:     a.cfg.Debug,
	})
}

// openSource returns the frames of the input: a directory is read as an
// image sequence, anything else goes through the extraction cache.
func (a *App) openSource(ctx context.Context) (source.Source, error) {
	info, err := os.Stat(a.cfg.Input)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		fps := a.cfg.FPS
		if fps == 0 {
			fps = DefaultImageFPS
		}
		return source.NewImages(a.cfg.Input, fps, a.cfg.Width, a.cfg.Height)
	}
	return a.extractCached(ctx)
}

func (a *App) extractCached(ctx context.Context) (source.Source, error) {
	store, err := cache.Open(a.cfg.CacheDir)
	if err != nil {
		return nil, errmsg.Wrap(errmsg.OpCacheOpen, err)
	}
	defer store.Close()

	key, err := cache.NewKey(a.cfg.Input, a.cfg.Width, a.cfg.Height, a.cfg.FPS)
	if err != nil {
		return nil, err
	}

	if !a.cfg.NoCache {
		meta, ok, err := store.Lookup(key)
		if err != nil {
			return nil, errmsg.Wrap(errmsg.OpCacheOpen, err)
		}
		if ok {
			return source.NewDir(store.FramesDir(), meta), nil
		}
	}

	if err := store.Invalidate(); err != nil {
		return nil, errmsg.Wrap(errmsg.OpCacheClean, err)
	}

	fps := a.cfg.FPS
	if fps == 0 {
		fps, err = a.opts.Tools.ProbeFrameRate(ctx, a.cfg.Input)
		if err != nil {
			return nil, errmsg.WrapWith(errmsg.OpProbe, a.cfg.Input, err)
		}
	}

	meta, err := a.opts.Tools.Extract(ctx, a.cfg.Input, store.FramesDir(), fps, a.cfg.Width, a.cfg.Height)
	if err != nil {
		return nil, errmsg.WrapWith(errmsg.OpExtract, a.cfg.Input, err)
	}
	if err := store.Save(key, meta); err != nil {
		return nil, errmsg.Wrap(errmsg.OpCacheSave, err)
	}
	return source.NewDir(store.FramesDir(), meta), nil
}

func (a *App) playAheadOfTime(ctx context.Context, src source.Source, factory codec.Factory) error {
	p, err := pipeline.New(pipeline.Config{
		ChunkSize: a.cfg.AOTFrameGroupSize,
		Workers:   a.cfg.CompressThreads,
		NewCodec:  factory,
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}

	stop := func() {}
	if a.opts.Progress != nil {
		stop = progress.New(a.opts.Progress, "Compressing frames").Track(ctx, p)
	}
	updates, err := p.Run(ctx, src, src.Metadata().FrameCount)
	stop()
	if err != nil {
		return errmsg.Wrap(errmsg.OpCompress, err)
	}

	return a.stream(ctx, src.Metadata().FPS, func(ctx context.Context, pl *player.Player) error {
		return pl.PlayUpdates(ctx, updates)
	})
}

func (a *App) playLive(ctx context.Context, src source.Source, factory codec.Factory) error {
	return a.stream(ctx, src.Metadata().FPS, func(ctx context.Context, pl *player.Player) error {
		return pl.PlayLive(ctx, src, src.Metadata().FrameCount, factory())
	})
}

// stream connects to the canvas and runs play over the connection.
func (a *App) stream(
	ctx context.Context,
	fps float64,
	play func(context.Context, *player.Player) error,
) error {
	addr := a.cfg.Addr()
	conn, err := a.opts.Dial(ctx, addr)
	if err != nil {
		return errmsg.WrapWith(errmsg.OpConnect, addr, err)
	}
	defer conn.Close()

	enc, err := a.cfg.Encoder()
	if err != nil {
		return err
	}
	sender, err := player.NewSender(conn, player.SenderConfig{
		Encoder:   enc,
		BatchSize: a.cfg.SendBatchSize,
		Workers:   a.cfg.SendThreads,
	})
	if err != nil {
		return err
	}
	pl, err := player.New(sender, player.Config{
		FPS:     fps,
		Loop:    a.cfg.Loop,
		Clock:   a.opts.Clock,
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "App.stream",
		"addr":     addr,
		"protocol": enc.Protocol.String(),
		"canvas":   enc.Canvas,
	}).Info("Connected")
	started := time.Now()

	err = play(ctx, pl)

	logrus.WithFields(logrus.Fields{
		"function": "App.stream",
		"frames":   humanize.Comma(pl.Played()),
		"sent":     humanize.Bytes(uint64(sender.Written())), //nolint:gosec // byte counts are non-negative
		"elapsed":  time.Since(started).Round(time.Second),
		"lag":      pl.Lag().Round(time.Millisecond),
	}).Info("Stream ended")

	if err != nil && !errors.Is(err, context.Canceled) {
		return errmsg.WrapWith(errmsg.OpPlay, addr, err)
	}
	return err
}

// CleanCache removes the extracted frames and the cached key, and returns
// the directory it cleaned.
func CleanCache(dir string) (string, error) {
	store, err := cache.Open(dir)
	if err != nil {
		return "", errmsg.Wrap(errmsg.OpCacheOpen, err)
	}
	defer store.Close()

	if err := store.Invalidate(); err != nil {
		return "", errmsg.Wrap(errmsg.OpCacheClean, err)
	}
	return store.FramesDir(), nil
}
