package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"sealdrive/pkg/core"
	"sealdrive/pkg/orchestrator"
	"sealdrive/pkg/session"
)

// 错误码 (响应体 {"error": {"code": ..., "message": ...}})
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeRejected      = "USER_REJECTED"
	CodeFileTooLarge  = "FILE_TOO_LARGE"
	CodeStorage       = "STORAGE_UNAVAILABLE"
	CodeTransaction   = "TRANSACTION_FAILED"
	CodeSessionClosed = "SESSION_CLOSED"
	CodeInternal      = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// writeOpError 把操作错误映射到 HTTP 状态
func writeOpError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyName):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, orchestrator.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, core.ErrUserRejected):
		return http.StatusForbidden, CodeRejected
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, CodeStorage
	case errors.Is(err, core.ErrTransactionFailed):
		return http.StatusBadGateway, CodeTransaction
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, CodeSessionClosed
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
