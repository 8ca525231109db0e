package errors

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"signalwatcher/pkg/common"
	"signalwatcher/pkg/observability"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every error response
type ErrorResponse struct {
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlationId"`
	Stack         string                 `json:"stack,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler turns errors into HTTP responses. It is the only component
// that writes error bodies, apart from the validation middleware's 400.
type ErrorHandler struct {
	logger     *zap.Logger
	metrics    *observability.Registry
	production bool
}

// NewErrorHandler creates a new error handler. Outside production, responses
// carry the stack trace and the request context.
func NewErrorHandler(logger *zap.Logger, metrics *observability.Registry, production bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger:     logger,
		metrics:    metrics,
		production: production,
	}
}

// Handle logs err, records it and writes the error response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	appErr := GetAppError(err)
	if appErr == nil {
		appErr = NewInternalError(err.Error()).WithCause(err)
	}

	status := appErr.Status()
	code := appErr.ErrorCode()
	message := appErr.Message
	if message == "" {
		message = "Internal Server Error"
	}

	correlationID, _ := common.GetCorrelationID(r.Context())
	if correlationID == "" {
		correlationID = w.Header().Get(common.CorrelationHeader)
	}

	errorContext := map[string]interface{}{
		"correlationId": correlationID,
		"method":        r.Method,
		"url":           r.URL.RequestURI(),
		"userAgent":     r.UserAgent(),
		"ip":            clientIP(r),
		"statusCode":    status,
		"errorCode":     code,
		"message":       message,
		"isOperational": appErr.Operational,
		"timestamp":     common.Timestamp(time.Now()),
	}
	if len(appErr.Details) > 0 {
		errorContext["details"] = appErr.Details
	}

	h.logError(r, appErr, status, code, errorContext)

	if h.metrics != nil {
		h.metrics.Increment(observability.ErrorsTotal, 1, observability.Labels{
			"status":        strconv.Itoa(status),
			"code":          code,
			"isOperational": strconv.FormatBool(appErr.Operational),
		})
	}

	response := ErrorResponse{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
	}

	if h.production {
		if !appErr.Operational {
			response.Message = "Internal Server Error"
		}
	} else {
		response.Stack = appErr.StackTrace
		response.Details = errorContext
	}

	h.sendJSON(w, status, response)
}

func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int, code string, errorContext map[string]interface{}) {
	logger := common.LoggerFrom(r.Context(), h.logger)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("url", r.URL.RequestURI()),
		zap.String("userAgent", r.UserAgent()),
		zap.String("ip", clientIP(r)),
		zap.Int("statusCode", status),
		zap.String("errorCode", code),
		zap.String("errorType", string(err.Type)),
		zap.Bool("isOperational", err.Operational),
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	if details, ok := errorContext["details"]; ok {
		fields = append(fields, zap.Any("details", details))
	}
	if !h.production && err.StackTrace != "" {
		fields = append(fields, zap.String("stack", err.StackTrace))
	}

	switch {
	case status >= 500:
		logger.Error("Server error occurred: "+err.Message, fields...)
	case status >= 400:
		logger.Warn("Client error occurred: "+err.Message, fields...)
	default:
		logger.Info("Error occurred: "+err.Message, fields...)
	}
}

func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Middleware recovers panics and hands them to Handle as internal errors
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
