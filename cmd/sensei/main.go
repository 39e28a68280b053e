// Command sensei diagnoses a learner's worked solution or runs a live
// audio/video mentoring session against the Gemini backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/senseihq/sensei-go/pkg/audio"
	"github.com/senseihq/sensei-go/pkg/capture"
	"github.com/senseihq/sensei-go/pkg/config"
	"github.com/senseihq/sensei-go/pkg/core"
	"github.com/senseihq/sensei-go/pkg/core/types"
	"github.com/senseihq/sensei-go/pkg/diagnose"
	"github.com/senseihq/sensei-go/pkg/live"
	"github.com/senseihq/sensei-go/pkg/profile"
)

func main() {
	_ = godotenv.Load()

	var (
		text         = flag.String("text", "", "worked solution to diagnose")
		file         = flag.String("file", "", "image or PDF of the worked solution")
		mode         = flag.String("mode", "EXAM", "diagnosis mode: EXAM, COACH, or COGNITIVE")
		liveSession  = flag.Bool("live", false, "start a realtime mentoring session")
		still        = flag.String("still", "", "image file used as the camera source in live mode")
		showHistory  = flag.Bool("history", false, "print the diagnosis history")
		showProfile  = flag.Bool("profile", false, "print the derived cognitive profile")
		clearHistory = flag.Bool("clear-history", false, "wipe the diagnosis history")
		debug        = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fatal(log, "load config", err)
	}

	aggregator, closeRepo := openAggregator(cfg, log)
	defer closeRepo()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case *clearHistory:
		if err := aggregator.Clear(ctx); err != nil {
			fatal(log, "clear history", err)
		}
		fmt.Println("history cleared")
	case *showHistory:
		printJSON(aggregator.History(ctx))
	case *showProfile:
		printJSON(aggregator.Profile(ctx))
	case *liveSession:
		runLive(ctx, cfg, log, *still)
	case *text != "" || *file != "":
		runDiagnosis(ctx, cfg, log, aggregator, *text, *file, *mode)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openAggregator(cfg config.Config, log *slog.Logger) (*profile.Aggregator, func()) {
	var repo profile.Repository
	closeRepo := func() {}
	sqlRepo, err := profile.OpenSQLite(cfg.HistoryPath)
	if err != nil {
		log.Warn("history db unavailable, using in-memory log", "path", cfg.HistoryPath, "err", err)
		repo = profile.NewMemoryRepository()
	} else {
		repo = sqlRepo
		closeRepo = func() { _ = sqlRepo.Close() }
	}
	agg, err := profile.NewAggregator(repo, profile.AggregatorOptions{Cap: cfg.HistoryCap, Logger: log})
	if err != nil {
		fatal(log, "create aggregator", err)
	}
	return agg, closeRepo
}

func runDiagnosis(ctx context.Context, cfg config.Config, log *slog.Logger, rec diagnose.Recorder, text, file, mode string) {
	gen, err := diagnose.NewGenAIGenerator(ctx, cfg.APIKey, cfg.DiagnosisModel)
	if err != nil {
		fatal(log, "create generator", err)
	}
	analyzer, err := diagnose.NewAnalyzer(gen, diagnose.AnalyzerOptions{Recorder: rec, Logger: log})
	if err != nil {
		fatal(log, "create analyzer", err)
	}

	req := diagnose.Request{Mode: types.Mode(strings.ToUpper(mode)), Text: text}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			fatal(log, "read attachment", err)
		}
		req.Attachment = &diagnose.Attachment{Data: data, MIMEType: attachmentMIME(file)}
	}

	analysis, err := analyzer.Analyze(ctx, req)
	if err != nil {
		switch {
		case core.IsQuotaExceeded(err):
			fatal(log, "diagnosis quota exceeded, try again later or switch credentials", err)
		case core.IsAuthInvalidated(err):
			fatal(log, "credentials invalid, re-authenticate and retry", err)
		default:
			fatal(log, "diagnosis failed", err)
		}
	}
	printJSON(analysis)
}

func runLive(ctx context.Context, cfg config.Config, log *slog.Logger, still string) {
	if cfg.APIKey == "" {
		fatal(log, "live session", core.NewAuthenticationError("missing API key"))
	}
	if still == "" {
		fatal(log, "live session", fmt.Errorf("-still is required: pass an image of the work under discussion"))
	}

	metrics := live.NewMetrics("")
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", "err", err)
			}
		}()
	}

	speaker, err := audio.NewSpeaker(config.PlaybackSampleRate)
	if err != nil {
		fatal(log, "open speaker", err)
	}
	defer speaker.Close()
	scheduler, err := audio.NewScheduler(speaker, config.PlaybackSampleRate, nil)
	if err != nil {
		fatal(log, "create playback scheduler", err)
	}

	mic, err := capture.NewMicrophone(config.CaptureSampleRate, cfg.BlockSamples)
	if err != nil {
		fatal(log, "open microphone", err)
	}

	sink := &controllerSink{}
	pipeline, err := capture.NewPipeline(mic, capture.NewStillImage(still), sink, capture.Options{
		FrameInterval: cfg.FrameInterval,
		FrameQuality:  cfg.FrameQuality,
		MaxFrameDim:   cfg.MaxFrameDim,
		Logger:        log,
	})
	if err != nil {
		fatal(log, "create capture pipeline", err)
	}

	dial := func(ctx context.Context) (live.Transport, error) {
		return live.Dial(ctx, live.ConnectConfig{
			Endpoint:     cfg.LiveEndpoint,
			APIKey:       cfg.APIKey,
			Model:        cfg.LiveModel,
			Voice:        cfg.Voice,
			SystemPrompt: cfg.SystemPrompt,
		})
	}
	controller, err := live.NewController(dial, pipeline, scheduler, live.ControllerOptions{
		TranscriptWindow: cfg.TranscriptWindow,
		Metrics:          metrics,
		Logger:           log,
	})
	if err != nil {
		fatal(log, "create session controller", err)
	}
	sink.controller = controller

	if err := controller.Start(ctx); err != nil {
		switch {
		case core.IsPermissionDenied(err):
			fatal(log, "microphone or camera unavailable", err)
		case core.IsAuthInvalidated(err):
			fatal(log, "credentials invalid, re-authenticate and retry", err)
		default:
			fatal(log, "start session", err)
		}
	}
	log.Info("session active, press Ctrl-C to end")

	transcriptTicker := time.NewTicker(2 * time.Second)
	defer transcriptTicker.Stop()
	var lastShown string
	for {
		select {
		case <-ctx.Done():
			controller.Stop()
			<-controller.Done()
			return
		case <-controller.Done():
			if err := controller.Err(); err != nil {
				log.Error("session ended", "err", err)
				os.Exit(1)
			}
			return
		case <-transcriptTicker.C:
			if lines := controller.Transcript(); len(lines) > 0 {
				if joined := strings.Join(lines, "\n"); joined != lastShown {
					fmt.Println(joined)
					lastShown = joined
				}
			}
		}
	}
}

// controllerSink breaks the construction cycle between the pipeline,
// which needs a sink up front, and the controller, which needs the
// pipeline.
type controllerSink struct {
	controller *live.Controller
}

func (s *controllerSink) SendAudio(pcm []byte) error {
	if s.controller == nil {
		return fmt.Errorf("session not wired")
	}
	return s.controller.SendAudio(pcm)
}

func (s *controllerSink) SendFrame(jpeg []byte) error {
	if s.controller == nil {
		return fmt.Errorf("session not wired")
	}
	return s.controller.SendFrame(jpeg)
}

func attachmentMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}
