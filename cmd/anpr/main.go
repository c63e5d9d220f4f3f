// Package main is the command line front end for one-shot recognition, streaming
// sessions and accuracy evaluation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"go-plate-recognizer/internal/config"
	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/evaluation"
	"go-plate-recognizer/internal/factory"
	"go-plate-recognizer/internal/license"
	"go-plate-recognizer/internal/logger"
	"go-plate-recognizer/internal/recognizer"
	"go-plate-recognizer/internal/source"
)

const (
	flagEnv        = "env"
	flagEngine     = "engine"
	flagTypeNumber = "type-number"
	flagLicense    = "license"
	flagDebug      = "debug"
	flagLogFile    = "log-file"
	flagMinHits    = "min-hits"
	flagMaxMisses  = "max-misses"
	flagTruth      = "truth"
	flagSource     = "source"
	flagContainer  = "container"
	flagPrefix     = "prefix"
)

// Frame sources of the stream command.
const (
	sourceDir  = "dir"
	sourceURL  = "url"
	sourceBlob = "blob"
)

func main() {
	app := &cli.App{
		Name:  "anpr",
		Usage: "recognize license plates in images and frame streams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagEnv,
				Usage: "load settings from `FILE` before the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  flagEngine,
				Usage: "recognition engine: tesseract or rekognition",
			},
			&cli.IntFlag{
				Name:  flagTypeNumber,
				Usage: "plate type number, selects the color path",
			},
			&cli.PathFlag{
				Name:  flagLicense,
				Usage: "engine license key `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to a rotated `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel("debug")
			}
			if path := c.Path(flagLogFile); path != "" {
				logger.SetFile(path)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "image",
				Usage:     "recognize plates in each image once",
				ArgsUsage: "<image>...",
				Action:    imageAction,
			},
			{
				Name:      "stream",
				Usage:     "run a recognition session over a stream of frames",
				ArgsUsage: "<dir> | <url>... | (none with --source blob)",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagMinHits, Usage: "frames a plate must be seen before it is reported"},
					&cli.IntFlag{Name: flagMaxMisses, Usage: "frames without a sighting before a plate is forgotten"},
					&cli.StringFlag{Name: flagSource, Value: sourceDir, Usage: "frame source: dir, url or blob"},
					&cli.StringFlag{Name: flagContainer, Usage: "blob `CONTAINER` holding the frames"},
					&cli.StringFlag{Name: flagPrefix, Usage: "blob name `PREFIX` of the frames"},
				},
				Action: streamAction,
			},
			{
				Name:      "evaluate",
				Usage:     "score one-shot recognition against a ground truth CSV",
				ArgsUsage: "<image>...",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagTruth, Required: true, Usage: "CSV `FILE` of image,plates rows"},
				},
				Action: evaluateAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles what every command needs.
type runtime struct {
	cfg    *config.Config
	engine engine.Engine
	out    *json.Encoder
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.LoadFromEnv(c.String(flagEnv))
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagEngine) {
		cfg.Engine = c.String(flagEngine)
	}
	if c.IsSet(flagTypeNumber) {
		cfg.Options = cfg.Options.WithTypeNumber(c.Int(flagTypeNumber))
	}
	if c.IsSet(flagLicense) {
		cfg.LicenseFile = c.Path(flagLicense)
	}

	eng, err := factory.NewEngineFactory(cfg).CreateEngine(c.Context, factory.EngineType(cfg.Engine))
	if err != nil {
		return nil, err
	}
	if err := license.NewLoader(cfg.LicenseFile).Install(eng); err != nil {
		closeEngine(eng)
		return nil, err
	}

	out := json.NewEncoder(c.App.Writer)
	return &runtime{cfg: cfg, engine: eng, out: out}, nil
}

func (r *runtime) recognizerOptions() ([]recognizer.Option, error) {
	sink, err := factory.CreateDiagnosticSink(r.cfg, factory.NewStorageFactory(r.cfg))
	if err != nil || sink == nil {
		return nil, err
	}
	return []recognizer.Option{recognizer.WithDiagnostics(sink)}, nil
}

func (r *runtime) close() {
	closeEngine(r.engine)
}

func closeEngine(eng engine.Engine) {
	if closer, ok := eng.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close engine")
		}
	}
}

func requireArgs(c *cli.Context, n int) error {
	if c.NArg() < n {
		_ = cli.ShowSubcommandHelp(c)
		return cli.Exit(fmt.Sprintf("%s needs %d argument(s)", c.Command.Name, n), 2)
	}
	return nil
}

type imageLine struct {
	Image     string             `json:"image"`
	ColorPath string             `json:"color_path,omitempty"`
	Plates    []recognizer.Plate `json:"plates"`
	Status    string             `json:"status,omitempty"`
	Error     string             `json:"error,omitempty"`
	Elapsed   float64            `json:"elapsed_sec"`
}

// recognizeFiles runs one-shot recognition over each path and hands every
// outcome to fn. Empty outcomes are not failures.
func recognizeFiles(c *cli.Context, r *runtime, fn func(imageLine, *recognizer.Result) error) error {
	opts, err := r.recognizerOptions()
	if err != nil {
		return err
	}
	rec := recognizer.New(r.engine, opts...)
	src := source.NewFileSource(c.Args().Slice())
	defer src.Close()

	for {
		frame, err := src.Next(c.Context)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var acq *source.AcquisitionError
			if errors.As(err, &acq) {
				logger.WithError(err).Warn("skipping unreadable image")
				continue
			}
			return err
		}

		start := time.Now()
		res, err := rec.Recognize(c.Context, frame.Image, r.cfg.Options)
		line := imageLine{Image: frame.Source, Elapsed: time.Since(start).Seconds()}
		var re *recognizer.RecognitionError
		switch {
		case err == nil:
			line.ColorPath = res.Path.String()
			line.Plates = res.Plates
		case errors.As(err, &re) && re.Empty():
			line.Status = re.Kind.String()
		case errors.As(err, &re):
			line.Error = err.Error()
		default:
			return err
		}
		if err := fn(line, res); err != nil {
			return err
		}
	}
}

func imageAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.close()

	return recognizeFiles(c, r, func(line imageLine, _ *recognizer.Result) error {
		return r.out.Encode(line)
	})
}

type frameLine struct {
	Seq       int                     `json:"seq"`
	Source    string                  `json:"source"`
	Committed []recognizer.Reading    `json:"committed,omitempty"`
	Crossings []recognizer.Crossing   `json:"crossings,omitempty"`
	Counters  recognizer.LineCounters `json:"counters"`
	Status    string                  `json:"status,omitempty"`
	Elapsed   float64                 `json:"elapsed_sec"`
}

// openSource builds the frame source named by kind. Directory and URL sources
// take their locations from args; blob sources list container under prefix.
func openSource(ctx context.Context, kind string, args []string, container, prefix string, storages factory.StorageFactory) (source.FrameSource, error) {
	switch kind {
	case sourceDir:
		if len(args) != 1 {
			return nil, fmt.Errorf("dir source needs exactly one directory, got %d", len(args))
		}
		return source.NewDirectorySource(args[0])
	case sourceURL:
		if len(args) == 0 {
			return nil, errors.New("url source needs at least one URL")
		}
		fetcher, err := storages.CreateStorage(factory.HTTPStorage)
		if err != nil {
			return nil, err
		}
		return source.NewURLSource(fetcher, args), nil
	case sourceBlob:
		if container == "" {
			return nil, fmt.Errorf("blob source needs --%s", flagContainer)
		}
		blobs, err := storages.CreateBlobStorage()
		if err != nil {
			return nil, err
		}
		return source.NewBlobSource(ctx, blobs, container, prefix)
	default:
		return nil, fmt.Errorf("unknown frame source %q", kind)
	}
}

func streamAction(c *cli.Context) error {
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.close()

	cfg := r.cfg.Session
	if c.IsSet(flagMinHits) {
		cfg.MinFramesWithPlate = c.Int(flagMinHits)
	}
	if c.IsSet(flagMaxMisses) {
		cfg.FramesWithoutPlate = c.Int(flagMaxMisses)
	}
	opts, err := r.recognizerOptions()
	if err != nil {
		return err
	}
	session, err := recognizer.NewSession(r.engine, r.cfg.Options, cfg, recognizer.WithSessionSettings(opts...))
	if err != nil {
		return err
	}
	defer session.Close()

	src, err := openSource(c.Context, c.String(flagSource), c.Args().Slice(),
		c.String(flagContainer), c.String(flagPrefix), factory.NewStorageFactory(r.cfg))
	if err != nil {
		_ = cli.ShowSubcommandHelp(c)
		return cli.Exit(err.Error(), 2)
	}
	defer src.Close()

	for {
		frame, err := src.Next(c.Context)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var acq *source.AcquisitionError
			if errors.As(err, &acq) {
				logger.WithError(err).Warn("skipping unreadable frame")
				continue
			}
			return err
		}

		start := time.Now()
		res, err := session.AddFrame(c.Context, frame.Image)
		var re *recognizer.RecognitionError
		line := frameLine{Source: frame.Source, Elapsed: time.Since(start).Seconds()}
		if err != nil {
			if res == nil {
				return fmt.Errorf("frame %s: %w", frame.Source, err)
			}
			if errors.As(err, &re) {
				line.Status = re.Kind.String()
			}
		}
		line.Seq = res.Seq
		line.Committed = res.NewlyCommitted()
		line.Crossings = res.Crossings
		line.Counters = res.Counters
		if err := r.out.Encode(line); err != nil {
			return err
		}
	}

	return r.out.Encode(struct {
		Readings []recognizer.Reading    `json:"readings"`
		Counters recognizer.LineCounters `json:"counters"`
	}{session.Committed(), session.Counters()})
}

func evaluateAction(c *cli.Context) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	f, err := os.Open(c.Path(flagTruth))
	if err != nil {
		return err
	}
	truth, err := evaluation.LoadGroundTruth(f)
	f.Close()
	if err != nil {
		return err
	}
	r, err := setup(c)
	if err != nil {
		return err
	}
	defer r.close()

	var report evaluation.Report
	err = recognizeFiles(c, r, func(line imageLine, res *recognizer.Result) error {
		if line.Error != "" {
			logger.WithField("image", line.Image).Warn(line.Error)
		}
		var got []string
		if res != nil {
			got = res.Texts()
		}
		report.Add(truth, filepath.Base(line.Image), got)
		return nil
	})
	if err != nil {
		return err
	}

	return r.out.Encode(struct {
		*evaluation.Report
		Accuracy float64 `json:"accuracy"`
	}{&report, report.Accuracy()})
}
