// internal/common/errors/handler.go
package errors

// ErrorDocument is the body returned for every failed request.
type ErrorDocument struct {
	Status    string    `json:"status"`
	URL       string    `json:"url"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// ErrorHandler converts request failures into error documents.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it and returns the HTTP status and the error
// document for the request at url.
func (h *ErrorHandler) Handle(url string, err error) (int, *ErrorDocument) {
	stdErr := Normalize(err)
	h.logError(url, stdErr)

	message := stdErr.Message
	if stdErr.Details != "" && stdErr.Code != ErrCodeInternal {
		message = message + ": " + stdErr.Details
	}
	if stdErr.Code == ErrCodeInternal {
		message = message + " (see logs)"
	}

	return HTTPStatus(stdErr.Code), &ErrorDocument{
		Status:    "error",
		URL:       url,
		Code:      stdErr.Code,
		Message:   message,
		Retryable: stdErr.Retryable,
	}
}

func (h *ErrorHandler) logError(url string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"url":           url,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	// client mistakes are expected traffic
	if stdErr.Code == ErrCodeRequestFormat || stdErr.Code == ErrCodeAccessDenied {
		h.logger.Warn("request rejected", fields)
		return
	}
	h.logger.Error("request failed", fields)
}
