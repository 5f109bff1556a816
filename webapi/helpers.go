package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/types"
)

var httpCodeForError = map[string]int{
	types.ErrInvalidRequest:      http.StatusBadRequest,
	types.ErrWalletUnavailable:   http.StatusServiceUnavailable,
	types.ErrSubmissionFailed:    http.StatusBadGateway,
	types.ErrNetworkError:        http.StatusBadGateway,
	types.ErrConfirmationTimeout: http.StatusGatewayTimeout,
	types.ErrInsufficientFunds:   http.StatusPaymentRequired,
	types.ErrConfigError:         http.StatusInternalServerError,
	types.ErrUnsupportedNetwork:  http.StatusBadRequest,
	errConflict:                  http.StatusConflict,
	errNotFound:                  http.StatusNotFound,
}

const (
	errConflict = "CONFLICT"
	errNotFound = "NOT_FOUND"
	errUnknown  = "UNKNOWN_ERROR"
)

func HttpStatusForError(code string) int {
	status, found := httpCodeForError[code]
	if !found {
		status = http.StatusInternalServerError
	}
	return status
}

func sendResponse(w http.ResponseWriter, l logger.Logger, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, l, http.StatusInternalServerError, errUnknown, fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // browsers cache GET forever by default
	_, _ = w.Write(b)
}

func sendBadRequest(w http.ResponseWriter, l logger.Logger, message string) {
	sendErrorResponse(w, l, http.StatusBadRequest, types.ErrInvalidRequest, message)
}

func sendError(w http.ResponseWriter, l logger.Logger, where string, err error) {
	var info *types.PaymentError
	if errors.As(err, &info) {
		message := fmt.Sprintf("%s: %s", where, info.Message)
		sendErrorResponse(w, l, HttpStatusForError(info.Code), info.Code, message)
	} else {
		message := fmt.Sprintf("%s: %s", where, err.Error())
		sendErrorResponse(w, l, http.StatusInternalServerError, errUnknown, message)
	}
}

func sendErrorResponse(w http.ResponseWriter, l logger.Logger, statusCode int, code string, message string) {
	l.Warn("request failed", map[string]any{"code": code, "error": message, "status": statusCode})
	// formatted by hand so encoding cannot fail here
	payload := fmt.Sprintf("{\"error\":{\"code\":%q,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(payload))
}
