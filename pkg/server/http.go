package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sealdrive/pkg/core"
	"sealdrive/pkg/orchestrator"
	"sealdrive/pkg/session"
	"sealdrive/pkg/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Operations 网关用到的编排操作 (*orchestrator.Orchestrator)
type Operations interface {
	Refresh(ctx context.Context, s *session.Session) ([]core.FileRecord, error)
	Upload(ctx context.Context, s *session.Session, req orchestrator.UploadRequest, progress orchestrator.Progress) (core.FileRecord, error)
	Delete(ctx context.Context, s *session.Session, cid types.ContentID, progress orchestrator.Progress) error
	Download(ctx context.Context, s *session.Session, cid types.ContentID, progress orchestrator.Progress) (*orchestrator.Resource, error)
	View(ctx context.Context, s *session.Session, cid types.ContentID, progress orchestrator.Progress) (*orchestrator.Resource, error)
}

// Handler 本地 HTTP 网关，所有请求共用一个会话
type Handler struct {
	ops     Operations
	session *session.Session
	log     *zap.Logger
}

type healthResponse struct {
	Status    string `json:"status"`
	Signer    string `json:"signer"`
	Query     string `json:"query"`
	Sponsored bool   `json:"sponsored"`
}

type listResponse struct {
	Files []core.FileRecord `json:"files"`
}

// NewRouter 装配路由
//
//	GET    /health
//	GET    /metrics
//	GET    /api/v1/files
//	POST   /api/v1/files               (multipart, 字段 "file")
//	POST   /api/v1/files/refresh
//	DELETE /api/v1/files/{cid}
//	GET    /api/v1/files/{cid}/download (?inline=1 直接展示)
func NewRouter(ops Operations, s *session.Session, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{ops: ops, session: s, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(Metrics)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/files", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.upload)
		r.Post("/refresh", h.refresh)
		r.Delete("/{cid}", h.delete)
		r.Get("/{cid}/download", h.download)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if h.session.Err() != nil {
		status = "closed"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Signer:    h.session.Identity.Signing.Hex(),
		Query:     h.session.Identity.Query.Hex(),
		Sponsored: h.session.Account != nil,
	})
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Files: h.session.Files()})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	files, err := h.ops.Refresh(r.Context(), h.session)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Files: files})
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	// 多留 1 MiB 给 multipart 头
	r.Body = http.MaxBytesReader(w, r.Body, orchestrator.MaxFileSize+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, orchestrator.ErrFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, CodeValidation, fmt.Sprintf("missing form file %q: %v", "file", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}

	name := header.Filename
	if v := r.FormValue("name"); v != "" {
		name = v
	}
	rec, err := h.ops.Upload(r.Context(), h.session, orchestrator.UploadRequest{
		Name:     name,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	cid := types.ContentID(chi.URLParam(r, "cid"))
	if err := h.ops.Delete(r.Context(), h.session, cid, nil); err != nil {
		writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	cid := types.ContentID(chi.URLParam(r, "cid"))
	inline := r.URL.Query().Get("inline") == "1"

	fetch := h.ops.Download
	if inline {
		fetch = h.ops.View
	}
	res, err := fetch(r.Context(), h.session, cid, nil)
	if err != nil {
		writeOpError(w, err)
		return
	}
	defer res.Release()

	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, res.Name))
	http.ServeFile(w, r, res.Path)
}
