// internal/services/hazard-curve/handler.go
package hazardcurve

import (
	"net/http"

	"hazard-service/internal/common/access"
	apperrors "hazard-service/internal/common/errors"
	commonhttp "hazard-service/internal/common/http"
	"hazard-service/internal/common/logger"

	"github.com/gin-gonic/gin"
)

const BasePath = "/hazard-curve"

type Handler struct {
	service *Service
	guard   *access.Guard
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler serves the hazard-curve endpoint. A nil guard admits everyone.
func NewHandler(service *Service, guard *access.Guard, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"handler": "hazard-curve"})
	return &Handler{
		service: service,
		guard:   guard,
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET(BasePath, h.Handle)
	r.GET(BasePath+"/*params", h.Handle)
}

// Handle accepts the query form and the path form. A request carrying a query
// string is always read as the query form.
func (h *Handler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	url := commonhttp.RequestURL(c.Request)

	if h.guard != nil {
		ip := c.ClientIP()
		if !h.guard.Allow(ctx, ip) {
			h.fail(c, url, apperrors.NewAccessDeniedError(ip))
			return
		}
	}

	query := c.Request.URL.RawQuery
	segments := SplitPath(c.Param("params"))

	var raw RawParams
	switch {
	case query != "":
		raw = ParamsFromQuery(c.Request.URL.Query())
	case len(segments) == 0:
		h.writeUsage(c)
		return
	default:
		var ok bool
		if raw, ok = ParamsFromPath(segments); !ok {
			h.writeUsage(c)
			return
		}
	}

	result, err := h.service.Process(ctx, url, raw)
	if err != nil {
		h.fail(c, url, err)
		return
	}
	commonhttp.WriteJSON(c, http.StatusOK, result)
}

func (h *Handler) fail(c *gin.Context, url string, err error) {
	status, doc := h.errors.Handle(url, err)
	if id := c.GetString(commonhttp.RequestIDKey); id != "" {
		h.logger.Debug("error response", map[string]interface{}{
			commonhttp.RequestIDKey: id,
			"code":                  string(doc.Code),
		})
	}
	commonhttp.WriteJSON(c, status, doc)
}

func (h *Handler) writeUsage(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", h.service.Usage())
}
