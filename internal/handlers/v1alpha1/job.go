package v1alpha1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	api "github.com/celia-labs/celia-agent/api/v1alpha1"
	"github.com/celia-labs/celia-agent/internal/handlers/v1alpha1/mappers"
	"github.com/celia-labs/celia-agent/internal/service"
)

type JobHandler struct {
	jobSrv *service.JobService
}

func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{jobSrv: jobService}
}

// Routes mounts the job endpoints on the router.
func (h *JobHandler) Routes(r chi.Router) {
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", h.CreateJob)
		r.Get("/", h.ListJobs)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetJob)
			r.Delete("/", h.DeleteJob)
			r.Get("/status", h.GetJobStatus)
			r.Get("/files/{filename}", h.DownloadFile)
		})
	})
}

// (POST /api/v1/jobs)
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var payload api.JobCreate
	if err := render.DecodeJSON(r.Body, &payload); err != nil {
		renderError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	job, err := h.jobSrv.CreateJob(r.Context(), payload.Task, payload.RepoURL)
	if err != nil {
		var invalid *service.ErrInvalidTask
		if errors.As(err, &invalid) {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, mappers.JobToApi(job))
}

// (GET /api/v1/jobs)
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := h.jobSrv.ListJobs(r.Context(), limit)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.JSON(w, r, mappers.JobListToApi(jobs))
}

// (GET /api/v1/jobs/{id})
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSrv.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var notFound *service.ErrResourceNotFound
		if errors.As(err, &notFound) {
			renderError(w, r, http.StatusNotFound, err.Error())
			return
		}
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.JSON(w, r, mappers.JobToApiDetail(job))
}

// (GET /api/v1/jobs/{id}/status)
func (h *JobHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.jobSrv.GetJobStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var notFound *service.ErrResourceNotFound
		if errors.As(err, &notFound) {
			renderError(w, r, http.StatusNotFound, err.Error())
			return
		}
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.JSON(w, r, api.JobStatus{Status: string(status)})
}

// (DELETE /api/v1/jobs/{id})
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.jobSrv.DeleteJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.JSON(w, r, map[string]string{"message": "Job deleted"})
}

// (GET /api/v1/jobs/{id}/files/{filename})
func (h *JobHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	path, err := h.jobSrv.ResolveFile(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "filename"))
	if err != nil {
		var notFound *service.ErrResourceNotFound
		if errors.As(err, &notFound) {
			renderError(w, r, http.StatusNotFound, err.Error())
			return
		}
		renderError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	http.ServeFile(w, r, path)
}

// (GET /health)
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func renderError(w http.ResponseWriter, r *http.Request, code int, message string) {
	render.Status(r, code)
	render.JSON(w, r, api.Error{Message: message})
}
