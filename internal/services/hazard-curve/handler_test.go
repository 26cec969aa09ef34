package hazardcurve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hazard-service/internal/common/access"
	apperrors "hazard-service/internal/common/errors"
	commonhttp "hazard-service/internal/common/http"
	"hazard-service/internal/common/logger"
	"hazard-service/internal/common/modelcache"
	"hazard-service/internal/common/workerpool"
	"hazard-service/internal/hazard"
	"hazard-service/internal/hazard/hazardtest"
	"hazard-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cous2014 = models.NewModelID(models.COUS, models.E2014)

const scenarioQuery = "/hazard-curve?edition=E2014&region=COUS&longitude=-122.4&latitude=37.8&imt=PGA&vs30=760"

type fixture struct {
	loader  *hazardtest.Loader
	cache   *modelcache.Cache
	pool    *workerpool.Pool
	service *Service
	router  *gin.Engine
}

type fixtureOptions struct {
	engine    hazard.Engine
	timeout   time.Duration
	poolSize  int
	queueSize int
	guard     *access.Guard
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	if opts.engine == nil {
		opts.engine = hazard.NewGridEngine(0.5)
	}
	if opts.poolSize == 0 {
		opts.poolSize = 2
	}
	if opts.queueSize == 0 {
		opts.queueSize = 8
	}

	loader := &hazardtest.Loader{T: t}
	cache := modelcache.New(loader, []models.ModelID{cous2014}, log)
	pool := workerpool.New("calc-"+t.Name(), opts.poolSize, opts.queueSize, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	usage, err := BuildUsage(BasePath, cache.Installed(), nil)
	require.NoError(t, err)

	cfg := &Config{ComputeTimeout: opts.timeout, CheckBounds: true}
	if cfg.ComputeTimeout == 0 {
		cfg.ComputeTimeout = 5 * time.Second
	}
	svc := NewService(cfg, cache, opts.engine, pool, usage, nil, log)

	router := gin.New()
	router.Use(commonhttp.RequestID(), commonhttp.Recovery(log))
	NewHandler(svc, opts.guard, log).RegisterRoutes(router)

	return &fixture{loader: loader, cache: cache, pool: pool, service: svc, router: router}
}

func (f *fixture) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type successDoc struct {
	Status string `json:"status"`
	Date   string `json:"date"`
	URL    string `json:"url"`
	Server struct {
		Threads int `json:"threads"`
		Timing  struct {
			Request string `json:"request"`
			Calc    string `json:"calc"`
		} `json:"timing"`
	} `json:"server"`
	Response json.RawMessage `json:"response"`
}

type responseBlock struct {
	Metadata struct {
		Edition struct {
			Value string `json:"value"`
		} `json:"edition"`
		Region struct {
			Value string `json:"value"`
		} `json:"region"`
		Imt struct {
			Value string `json:"value"`
		} `json:"imt"`
		Vs30 struct {
			Value string `json:"value"`
		} `json:"vs30"`
		Longitude float64   `json:"longitude"`
		Latitude  float64   `json:"latitude"`
		XLabel    string    `json:"xlabel"`
		YLabel    string    `json:"ylabel"`
		XValues   []float64 `json:"xvals"`
	} `json:"metadata"`
	Data []struct {
		Component string    `json:"component"`
		YValues   []float64 `json:"yvals"`
	} `json:"data"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorDocument {
	t.Helper()
	var doc apperrors.ErrorDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), w.Body.String())
	assert.Equal(t, "error", doc.Status)
	return doc
}

func TestHandler_Cous2014Scenario(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	w := f.get(t, scenarioQuery)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(commonhttp.RequestIDHeader))

	var doc successDoc
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, StatusSuccess, doc.Status)
	assert.Equal(t, "http://example.com"+scenarioQuery, doc.URL)
	assert.Equal(t, 2, doc.Server.Threads)
	assert.Contains(t, doc.Server.Timing.Calc, "ms")
	_, err := time.Parse(time.RFC3339, doc.Date)
	assert.NoError(t, err)

	var blocks []responseBlock
	require.NoError(t, json.Unmarshal(doc.Response, &blocks))
	require.Len(t, blocks, 1)

	block := blocks[0]
	assert.Equal(t, "PGA", block.Metadata.Imt.Value)
	assert.Equal(t, "E2014", block.Metadata.Edition.Value)
	assert.Equal(t, "COUS", block.Metadata.Region.Value)
	assert.Equal(t, "760", block.Metadata.Vs30.Value)
	assert.Equal(t, -122.4, block.Metadata.Longitude)
	assert.Equal(t, XLabel, block.Metadata.XLabel)
	assert.Equal(t, YLabel, block.Metadata.YLabel)
	assert.Equal(t, hazardtest.Levels[models.PGA], block.Metadata.XValues)

	var components []string
	for _, c := range block.Data {
		components = append(components, c.Component)
		assert.Len(t, c.YValues, len(block.Metadata.XValues))
	}
	assert.Equal(t, []string{"Total", "Fault", "Cluster", "Grid"}, components)

	// the fault and grid sets near San Francisco carry scales 1.0 and 0.1
	want := hazardtest.Rates(models.PGA, 1.1)
	for i, y := range block.Data[0].YValues {
		assert.InDelta(t, want[i], y, 1e-15)
	}
}

func TestHandler_PathFormMatchesQueryForm(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	byQuery := f.get(t, scenarioQuery)
	byPath := f.get(t, "/hazard-curve/E2014/COUS/-122.4/37.8/PGA/760")
	require.Equal(t, http.StatusOK, byQuery.Code)
	require.Equal(t, http.StatusOK, byPath.Code)

	var a, b successDoc
	require.NoError(t, json.Unmarshal(byQuery.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(byPath.Body.Bytes(), &b))
	assert.JSONEq(t, string(a.Response), string(b.Response))
	assert.Equal(t, "http://example.com/hazard-curve/E2014/COUS/-122.4/37.8/PGA/760", b.URL)
}

func TestHandler_Idempotent(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	var first successDoc
	for i := 0; i < 3; i++ {
		w := f.get(t, scenarioQuery)
		require.Equal(t, http.StatusOK, w.Code)

		var doc successDoc
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		if i == 0 {
			first = doc
			continue
		}
		assert.JSONEq(t, string(first.Response), string(doc.Response))
		assert.Equal(t, first.URL, doc.URL)
	}
	assert.Equal(t, 1, f.loader.CallsFor(cous2014))
}

func TestHandler_Usage(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	var bodies []string
	for _, target := range []string{"/hazard-curve", "/hazard-curve", "/hazard-curve/", "/hazard-curve/E2014/COUS/-122.4"} {
		w := f.get(t, target)
		require.Equal(t, http.StatusOK, w.Code, target)
		bodies = append(bodies, w.Body.String())
	}
	for _, body := range bodies[1:] {
		assert.Equal(t, bodies[0], body)
	}

	var usage struct {
		Status string   `json:"status"`
		Syntax []string `json:"syntax"`
		Models []struct {
			ID string `json:"id"`
		} `json:"models"`
		Parameters struct {
			Imt struct {
				Values []struct {
					Value string `json:"value"`
				} `json:"values"`
			} `json:"imt"`
		} `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &usage))
	assert.Len(t, usage.Parameters.Imt.Values, len(models.Imts()))
	assert.Equal(t, StatusUsage, usage.Status)
	assert.Len(t, usage.Syntax, 2)
	require.Len(t, usage.Models, 1)
	assert.Equal(t, "COUS_2014", usage.Models[0].ID)
	assert.Equal(t, 0, f.loader.Calls())
}

func TestHandler_UnknownModel(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	require.Equal(t, http.StatusOK, f.get(t, scenarioQuery).Code)

	w := f.get(t, "/hazard-curve?edition=E2008&region=WUS&longitude=-122.4&latitude=37.8&imt=PGA&vs30=760")
	assert.Equal(t, http.StatusNotFound, w.Code)
	doc := decodeError(t, w)
	assert.Equal(t, apperrors.ErrCodeModelUnavailable, doc.Code)
	assert.Contains(t, doc.Message, "WUS_2008")

	// other keys are untouched
	assert.Equal(t, []models.ModelID{cous2014}, f.cache.Loaded())
	require.Equal(t, http.StatusOK, f.get(t, scenarioQuery).Code)
	assert.Equal(t, 1, f.loader.Calls())
}

func TestHandler_ModelLoadFailure(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.loader.Err = errors.New("archive corrupt")

	w := f.get(t, scenarioQuery)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ErrCodeModelUnavailable, decodeError(t, w).Code)

	f.loader.Err = nil
	assert.Equal(t, http.StatusOK, f.get(t, scenarioQuery).Code)
}

func TestHandler_MalformedInput(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	tests := []struct {
		name   string
		target string
	}{
		{"non-numeric latitude", "/hazard-curve?edition=E2014&region=COUS&longitude=-122.4&latitude=north&imt=PGA&vs30=760"},
		{"missing vs30", "/hazard-curve?edition=E2014&region=COUS&longitude=-122.4&latitude=37.8&imt=PGA"},
		{"unknown region in path", "/hazard-curve/E2014/MARS/-122.4/37.8/PGA/760"},
		{"imt not in model", "/hazard-curve?edition=E2014&region=COUS&longitude=-122.4&latitude=37.8&imt=SA2P0&vs30=760"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.get(t, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			doc := decodeError(t, w)
			assert.Equal(t, apperrors.ErrCodeRequestFormat, doc.Code)
			assert.False(t, doc.Retryable)
			assert.Equal(t, "http://example.com"+tt.target, doc.URL)
		})
	}

	// parsing failures never reach the cache
	assert.LessOrEqual(t, f.loader.Calls(), 1)
}

func TestHandler_AccessDenied(t *testing.T) {
	counter := access.NewCounter()
	guard := access.NewGuard(counter, access.GuardOptions{Enabled: true, Blocklist: []string{"98.26.65.16"}})
	f := newFixture(t, fixtureOptions{guard: guard})

	w := f.get(t, scenarioQuery, "X-Forwarded-For", "98.26.65.16")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.ErrCodeAccessDenied, decodeError(t, w).Code)

	w = f.get(t, scenarioQuery, "X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, int64(1), counter.Count("98.26.65.16"))
	assert.Equal(t, int64(1), counter.Count("203.0.113.7"))
	assert.Equal(t, 1, f.loader.Calls())
}

func TestHandler_ComputationErrors(t *testing.T) {
	t.Run("engine failure", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{engine: hazard.EngineFunc(
			func(ctx context.Context, m *hazard.Model, cfg hazard.CalcConfig, s hazard.Site) (*hazard.Result, error) {
				return nil, errors.New("matrix singular")
			})})

		w := f.get(t, scenarioQuery)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		doc := decodeError(t, w)
		assert.Equal(t, apperrors.ErrCodeComputation, doc.Code)
		assert.Contains(t, doc.Message, "matrix singular")
	})

	t.Run("engine panic", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{engine: hazard.EngineFunc(
			func(ctx context.Context, m *hazard.Model, cfg hazard.CalcConfig, s hazard.Site) (*hazard.Result, error) {
				panic("nil source")
			})})

		w := f.get(t, scenarioQuery)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, apperrors.ErrCodeComputation, decodeError(t, w).Code)

		// the pool survives
		assert.Equal(t, http.StatusInternalServerError, f.get(t, scenarioQuery).Code)
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{
			timeout: 20 * time.Millisecond,
			engine: hazard.EngineFunc(func(ctx context.Context, m *hazard.Model, cfg hazard.CalcConfig, s hazard.Site) (*hazard.Result, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		})

		w := f.get(t, scenarioQuery)
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		doc := decodeError(t, w)
		assert.Equal(t, apperrors.ErrCodeComputationTimeout, doc.Code)
		assert.True(t, doc.Retryable)
	})
}

func TestService_SaturatedPool(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	grid := hazard.NewGridEngine(0.5)

	f := newFixture(t, fixtureOptions{
		poolSize:  1,
		queueSize: -1,
		engine: hazard.EngineFunc(func(ctx context.Context, m *hazard.Model, cfg hazard.CalcConfig, s hazard.Site) (*hazard.Result, error) {
			started <- struct{}{}
			<-release
			return grid.Compute(ctx, m, cfg, s)
		}),
	})

	raw := validRaw()
	done := make(chan error, 1)
	go func() {
		for {
			// the lone worker may not be parked on the queue yet
			_, err := f.service.Process(context.Background(), "first", raw)
			if errors.Is(err, workerpool.ErrPoolSaturated) {
				time.Sleep(time.Millisecond)
				continue
			}
			done <- err
			return
		}
	}()
	<-started

	_, err := f.service.Process(context.Background(), "second", raw)
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeServiceSaturated, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Equal(t, StageComputing.String(), stdErr.Metadata["stage"])
	assert.ErrorIs(t, err, workerpool.ErrPoolSaturated)

	close(release)
	require.NoError(t, <-done)
}

func TestService_UnsupportedVs30(t *testing.T) {
	id := models.NewModelID(models.WUS, models.E2014)
	cfg, err := hazard.NewCalcConfig(hazardtest.Imts, hazardtest.Levels, map[models.Vs30]float64{models.VS760: 1})
	require.NoError(t, err)
	model, err := hazard.NewModel(id, "rock only", cfg, hazardtest.Model(t, id).SourceSets())
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	pool := workerpool.New("vs30", 1, 1, log)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	source := staticSource{model}
	svc := NewService(&Config{CheckBounds: true}, source, hazard.NewGridEngine(0.5), pool, nil, nil, log)

	raw := validRaw()
	raw.Region = "WUS"
	raw.Vs30 = "259"
	_, err = svc.Process(context.Background(), "u", raw)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeRequestFormat, stdErr.Code)
	assert.Equal(t, ParamVs30, stdErr.Metadata["field"])

	raw.Vs30 = "760"
	result, err := svc.Process(context.Background(), "u", raw)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Server.Threads)
}

type staticSource struct{ model *hazard.Model }

func (s staticSource) Get(ctx context.Context, id models.ModelID) (*hazard.Model, error) {
	if id != s.model.ID() {
		return nil, modelcache.ErrModelNotInstalled
	}
	return s.model, nil
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "parsing", StageParsing.String())
	assert.Equal(t, "failed", StageFailed.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
