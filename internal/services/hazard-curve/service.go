// internal/services/hazard-curve/service.go
package hazardcurve

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "hazard-service/internal/common/errors"
	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/metrics"
	"hazard-service/internal/common/observability"
	"hazard-service/internal/common/workerpool"
	"hazard-service/internal/hazard"
	"hazard-service/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "hazard-service/hazard-curve"

// Stage is a step of the request pipeline.
type Stage int

const (
	StageParsing Stage = iota
	StageResolving
	StageComputing
	StageAggregating
	StageDone
	StageFailed
)

var stageNames = [...]string{"parsing", "resolving", "computing", "aggregating", "done", "failed"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ModelSource hands out loaded models; *modelcache.Cache satisfies it.
type ModelSource interface {
	Get(ctx context.Context, id models.ModelID) (*hazard.Model, error)
}

type Service struct {
	config *Config
	models ModelSource
	engine hazard.Engine
	pool   *workerpool.Pool
	usage  []byte
	obs    *observability.Observability
	tracer trace.Tracer
	logger logger.Logger
	now    func() time.Time
}

func NewService(cfg *Config, source ModelSource, engine hazard.Engine, pool *workerpool.Pool, usage []byte, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		config: cfg,
		models: source,
		engine: engine,
		pool:   pool,
		usage:  usage,
		obs:    obs,
		tracer: otel.Tracer(tracerName),
		logger: log.WithFields(map[string]interface{}{"service": "hazard-curve"}),
		now:    time.Now,
	}
}

// Usage returns the pre-rendered usage document.
func (s *Service) Usage() []byte { return s.usage }

type calcOutcome struct {
	result  *hazard.Result
	elapsed time.Duration
}

// Process runs one request through parsing, model resolution, computation
// and aggregation. Every error it returns is a *errors.StandardError.
func (s *Service) Process(ctx context.Context, url string, raw RawParams) (result *Result, err error) {
	start := s.now()
	stage := StageParsing

	ctx, span := s.tracer.Start(ctx, "hazard-curve", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
		}
		s.finish(ctx, span, stage, start, err)
		if err != nil {
			err = apperrors.Normalize(err).WithMetadata("stage", stage.String())
		}
	}()

	var desc RequestDescriptor
	err = s.runStage(ctx, StageParsing, func(ctx context.Context) error {
		var perr error
		desc, perr = NewRequestDescriptor(raw, s.config.requestOptions())
		return perr
	})
	if err != nil {
		return nil, err
	}

	stage = StageResolving
	var model *hazard.Model
	err = s.runStage(ctx, stage, func(ctx context.Context) error {
		var rerr error
		model, rerr = s.models.Get(ctx, desc.ModelID())
		if rerr != nil {
			return apperrors.NewModelUnavailableError(desc.ModelID().String(), rerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stage = StageComputing
	var outcome calcOutcome
	err = s.runStage(ctx, stage, func(ctx context.Context) error {
		var cerr error
		outcome, cerr = s.compute(ctx, model, desc)
		return cerr
	})
	if err != nil {
		return nil, err
	}

	stage = StageAggregating
	var blocks []ImtResponse
	err = s.runStage(ctx, stage, func(ctx context.Context) error {
		var aerr error
		blocks, aerr = Aggregate(desc, outcome.result)
		if aerr != nil {
			return apperrors.NewInternalError(aerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stage = StageDone
	return &Result{
		Status: StatusSuccess,
		Date:   s.now().Format(time.RFC3339),
		URL:    url,
		Server: ServerInfo{
			Threads: s.pool.Size(),
			Timing: Timing{
				Request: formatDuration(s.now().Sub(start)),
				Calc:    formatDuration(outcome.elapsed),
			},
		},
		Response: blocks,
	}, nil
}

func (s *Service) compute(ctx context.Context, model *hazard.Model, desc RequestDescriptor) (calcOutcome, error) {
	cfg, err := model.Config().WithImts(desc.Imts)
	if err != nil {
		return calcOutcome{}, apperrors.NewRequestFormatError(ParamImt, err)
	}
	if _, ok := cfg.SiteTerm(desc.Vs30); !ok {
		return calcOutcome{}, apperrors.NewRequestFormatError(ParamVs30,
			fmt.Errorf("%w: %s for %s", hazard.ErrVs30NotSupported, desc.Vs30, model.ID()))
	}
	site := desc.Site()

	future, err := workerpool.Submit(ctx, s.pool, func(ctx context.Context) (calcOutcome, error) {
		begin := time.Now()
		r, err := s.engine.Compute(ctx, model, cfg, site)
		return calcOutcome{result: r, elapsed: time.Since(begin)}, err
	})
	if err != nil {
		return calcOutcome{}, apperrors.NewServiceSaturatedError(err)
	}

	awaitCtx := ctx
	if s.config.ComputeTimeout > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(ctx, s.config.ComputeTimeout)
		defer cancel()
	}

	outcome, err := future.Await(awaitCtx)
	switch {
	case err == nil && outcome.result == nil:
		return calcOutcome{}, apperrors.NewComputationError(errors.New("engine returned no result"))
	case err == nil:
		return outcome, nil
	case errors.Is(err, workerpool.ErrAwaitTimeout):
		return calcOutcome{}, apperrors.NewComputationTimeoutError(s.config.ComputeTimeout, err)
	case errors.Is(err, hazard.ErrVs30NotSupported):
		return calcOutcome{}, apperrors.NewRequestFormatError(ParamVs30, err)
	case errors.Is(err, hazard.ErrImtNotSupported):
		return calcOutcome{}, apperrors.NewRequestFormatError(ParamImt, err)
	default:
		return calcOutcome{}, apperrors.NewComputationError(err)
	}
}

func (s *Service) runStage(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, stage.String())
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) finish(ctx context.Context, span trace.Span, stage Stage, start time.Time, err error) {
	status := StatusSuccess
	code := ""
	if err != nil {
		status = "error"
		code = string(apperrors.CodeOf(err))
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.String("state", StageFailed.String()),
			attribute.String("failed_stage", stage.String()),
		)
	}

	elapsed := s.now().Sub(start)
	metrics.RequestsTotal.WithLabelValues(status, code).Inc()
	s.obs.RecordRequestProcessed(ctx, status)
	s.obs.RecordRequestDuration(ctx, elapsed, status)

	if err == nil {
		s.logger.Debug("request completed", map[string]interface{}{
			"stage":       StageDone.String(),
			"duration_ms": elapsed.Milliseconds(),
		})
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f ms", float64(d.Microseconds())/1000)
}
