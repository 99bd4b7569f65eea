package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	domsvc "ChartSignal/internal/domain/service"
	"ChartSignal/internal/services/features"
	"ChartSignal/internal/services/ohlc"
	"ChartSignal/internal/services/signal"
	"ChartSignal/internal/services/targets"
	"ChartSignal/internal/services/vision"
	applogger "ChartSignal/pkg/logger"
	"ChartSignal/pkg/metrics"
)

// Backends are the inference handles. A nil handle means the backend is unavailable.
type Backends struct {
	Pattern  domsvc.PatternRecognizer
	Ensemble domsvc.EnsembleClassifier
}

// Stages are the pipeline components, built once from config.
type Stages struct {
	Preprocessor *vision.Preprocessor
	Validator    *vision.ChartValidator
	Detector     *vision.CandleDetector
	Extractor    *features.Extractor
	Combiner     *signal.Combiner
	Calculator   *targets.Calculator
}

// DefaultStages builds every stage with its default configuration.
func DefaultStages() Stages {
	return Stages{
		Preprocessor: vision.NewPreprocessor(vision.DefaultPreprocessConfig()),
		Validator:    vision.NewChartValidator(vision.DefaultValidatorConfig()),
		Detector:     vision.NewCandleDetector(vision.DefaultDetectorConfig()),
		Extractor:    features.NewExtractor(),
		Combiner:     signal.NewCombiner(),
		Calculator:   targets.NewCalculator(),
	}
}

type AnalyzerOption func(*ChartAnalyzer)

// WithTimeout bounds one Analyze call. Default 15s.
func WithTimeout(d time.Duration) AnalyzerOption { return func(a *ChartAnalyzer) { a.timeout = d } }

// WithMinCandles sets how many candles an image needs. Default 10.
func WithMinCandles(n int) AnalyzerOption { return func(a *ChartAnalyzer) { a.minCandles = n } }

// WithTensorSize sets the pattern model input edge. Default 64.
func WithTensorSize(n int) AnalyzerOption { return func(a *ChartAnalyzer) { a.tensorSize = n } }

func WithMetrics(m domrepo.Metrics) AnalyzerOption { return func(a *ChartAnalyzer) { a.metrics = m } }

// ChartAnalyzer runs the chart image pipeline. It holds only read-only state,
// so concurrent Analyze calls are safe.
type ChartAnalyzer struct {
	stages     Stages
	backends   Backends
	pool       *WorkerPool
	l          *applogger.Logger
	metrics    domrepo.Metrics
	timeout    time.Duration
	minCandles int
	tensorSize int
}

func NewChartAnalyzer(stages Stages, backends Backends, pool *WorkerPool, l *applogger.Logger, opts ...AnalyzerOption) *ChartAnalyzer {
	if l == nil {
		l = applogger.Nop()
	}
	if pool == nil {
		pool = NewWorkerPool(0)
	}
	a := &ChartAnalyzer{
		stages:     stages,
		backends:   backends,
		pool:       pool,
		l:          l,
		metrics:    metrics.Noop{},
		timeout:    15 * time.Second,
		minCandles: 10,
		tensorSize: 64,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// cvOutput is what the CPU-bound stages hand to the rest of the pipeline.
type cvOutput struct {
	candles []models.CandleRegion
	height  int
	tensor  models.ImageTensor
}

// Analyze turns image bytes into a trading signal with targets.
// Rejections are *models.DecodeError, *models.NotAChartError and
// *models.InsufficientCandlesError; a timeout wraps context.DeadlineExceeded.
func (a *ChartAnalyzer) Analyze(ctx context.Context, image []byte, settings models.AnalysisSettings) (*models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()

	var cv cvOutput
	err := a.pool.Do(ctx, func() error {
		var err error
		cv, err = a.runVision(ctx, image)
		return err
	})
	if err != nil {
		return nil, a.reject(err)
	}

	selection, err := features.ParseIndicators(settings.Indicators)
	if err != nil {
		a.l.Warn("ignoring unknown indicators", applogger.Error(err))
	}
	// Nothing usable requested: compute and report the full set.
	if len(selection) == 0 {
		selection = features.AllIndicators
	}

	t := time.Now()
	bars := ohlc.Reconstruct(cv.candles, cv.height)
	feats := a.stages.Extractor.Extract(bars, selection)
	a.stage("features", t)
	if err := ctx.Err(); err != nil {
		return nil, a.reject(err)
	}

	pattern, ensemble := a.infer(ctx, cv.tensor, feats)
	if err := ctx.Err(); err != nil {
		return nil, a.reject(err)
	}

	combined := a.stages.Combiner.Combine(pattern, ensemble, settings.Sensitivity)
	levels := a.stages.Calculator.Calculate(combined.Direction, combined.Confidence, feats, settings.Timeframe)

	indicators := features.Names(selection)
	res := &models.AnalysisResult{
		Direction:    combined.Direction,
		Confidence:   combined.Confidence,
		Source:       combined.Source,
		CandleCount:  len(cv.candles),
		TargetLevels: levels,
		Timeframe:    settings.Timeframe,
		Indicators:   indicators,
		Sensitivity:  settings.Sensitivity,
		Features:     feats,
	}
	a.metrics.RecordPrediction(string(res.Direction), string(res.Source))
	a.stage("total", start)
	a.l.Debug("chart analyzed",
		applogger.String("direction", string(res.Direction)),
		applogger.Float64("confidence", res.Confidence),
		applogger.String("source", string(res.Source)),
		applogger.Int("candles", res.CandleCount),
		applogger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func (a *ChartAnalyzer) runVision(ctx context.Context, image []byte) (cvOutput, error) {
	var out cvOutput

	t := time.Now()
	pre, err := a.stages.Preprocessor.Preprocess(image)
	if err != nil {
		return out, err
	}
	a.stage("preprocess", t)
	if err := ctx.Err(); err != nil {
		return out, err
	}

	t = time.Now()
	report, err := a.stages.Validator.Validate(pre.Gray)
	a.stage("validate", t)
	if err != nil {
		a.l.Info("image rejected: not a chart",
			applogger.Int("segments", report.Segments),
			applogger.Int("horizontal", report.Horizontal),
			applogger.Int("vertical", report.Vertical),
		)
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	t = time.Now()
	out.candles = a.stages.Detector.Detect(pre)
	a.stage("detect", t)
	if len(out.candles) < a.minCandles {
		a.l.Info("image rejected: too few candles",
			applogger.Int("found", len(out.candles)),
			applogger.Int("required", a.minCandles),
		)
		return out, &models.InsufficientCandlesError{Found: len(out.candles), Required: a.minCandles}
	}
	out.height = pre.Bounds().Dy()
	if a.backends.Pattern != nil {
		out.tensor = vision.PrepareForModel(pre.Gray, a.tensorSize)
	}
	return out, ctx.Err()
}

// infer queries both backends concurrently. Failures are logged and the
// signal is treated as absent.
func (a *ChartAnalyzer) infer(ctx context.Context, tensor models.ImageTensor, f models.Features) (pattern, ensemble *models.Signal) {
	type item struct {
		name string
		sig  models.Signal
		err  error
	}
	ch := make(chan item, 2)
	var wg sync.WaitGroup
	t := time.Now()

	if a.backends.Pattern != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.backends.Pattern.Recognize(ctx, tensor)
			ch <- item{"pattern", p.Top(), err}
		}()
	}
	if a.backends.Ensemble != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := a.backends.Ensemble.Classify(ctx, f)
			ch <- item{"ensemble", s, err}
		}()
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			a.metrics.RecordError("inference_" + it.name)
			a.l.Warn("inference backend unavailable",
				applogger.String("backend", it.name),
				applogger.Error(it.err),
			)
			continue
		}
		sig := it.sig
		switch it.name {
		case "pattern":
			pattern = &sig
		case "ensemble":
			ensemble = &sig
		}
	}
	a.stage("inference", t)
	return pattern, ensemble
}

func (a *ChartAnalyzer) stage(name string, since time.Time) {
	a.metrics.RecordStage(name, time.Since(since).Seconds())
}

// reject records the rejection reason and wraps context errors.
func (a *ChartAnalyzer) reject(err error) error {
	switch {
	case errors.Is(err, models.ErrDecode):
		a.metrics.RecordRejection("decode")
		a.l.Info("image rejected: decode failed", applogger.Error(err))
	case errors.Is(err, models.ErrNotAChart):
		a.metrics.RecordRejection("not_a_chart")
	case errors.Is(err, models.ErrInsufficientCandles):
		a.metrics.RecordRejection("insufficient_candles")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		a.metrics.RecordRejection("timeout")
		return fmt.Errorf("analysis aborted: %w", err)
	}
	return err
}
