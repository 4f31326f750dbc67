package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"veoqueue/internal/domain"
	"veoqueue/internal/i18n"
	"veoqueue/internal/media"
)

// maxRequestBytes leaves room for form fields and base64 overhead.
const (
	maxRequestBytes = media.MaxUploadBytes*4/3 + 1<<20
	maxBatchBytes   = 16 * maxRequestBytes
)

type jobRequest struct {
	Prompt      string `json:"prompt"`
	InputType   string `json:"input_type"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`
	Label       string `json:"label"`
	ImageBase64 string `json:"image_base64"`
}

type batchRequest struct {
	Jobs []jobRequest `json:"jobs"`
}

type jobResponse struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          string     `json:"status"`
	Prompt          string     `json:"prompt"`
	InputType       string     `json:"input_type"`
	Model           string     `json:"model"`
	AspectRatio     string     `json:"aspect_ratio"`
	Resolution      string     `json:"resolution"`
	Label           string     `json:"label,omitempty"`
	HasImage        bool       `json:"has_image"`
	ImageMIMEType   string     `json:"image_mime_type,omitempty"`
	VideoResult     string     `json:"video_result,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	ProgressMessage string     `json:"progress_message,omitempty"`
}

type jobListResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

func toJobResponse(job domain.Job) jobResponse {
	out := jobResponse{
		ID:              job.ID,
		CreatedAt:       job.CreatedAt,
		Status:          string(job.Status),
		Prompt:          job.Prompt,
		InputType:       string(job.InputType),
		Model:           job.Model,
		AspectRatio:     job.AspectRatio,
		Resolution:      job.Resolution,
		Label:           job.Label,
		VideoResult:     job.VideoResult,
		Error:           job.Error,
		StartTime:       job.StartTime,
		ProgressMessage: job.ProgressMessage,
	}
	if job.Image != nil {
		out.HasImage = true
		out.ImageMIMEType = job.Image.MIMEType
	}
	return out
}

func toJobResponses(jobs []domain.Job) []jobResponse {
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobResponse(job))
	}
	return out
}

// ListJobs returns jobs in insertion order, optionally filtered by ?status=
// and a case-insensitive ?label=.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	label := i18n.FoldLabel(r.URL.Query().Get("label"))

	jobs := a.Store.List()
	filtered := jobs[:0]
	for _, job := range jobs {
		if status != "" && string(job.Status) != status {
			continue
		}
		if label != "" && i18n.FoldLabel(job.Label) != label {
			continue
		}
		filtered = append(filtered, job)
	}
	a.json(w, http.StatusOK, jobListResponse{Jobs: toJobResponses(filtered)})
}

// GetJob returns a single job.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := a.Store.Get(id)
	if !ok {
		a.error(w, r, http.StatusNotFound, "not_found", i18n.MsgJobNotFound, id)
		return
	}
	a.json(w, http.StatusOK, toJobResponse(job))
}

// CreateJob accepts a JSON body or a multipart form with an "image" file.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var (
		job domain.Job
		err error
	)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		job, err = a.jobFromMultipart(r)
	} else {
		var req jobRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
			return
		}
		job, err = a.buildJob(req, nil)
	}
	if err != nil {
		a.jobError(w, r, err)
		return
	}
	if err := a.Store.Add(job); err != nil {
		a.jobError(w, r, err)
		return
	}
	a.log().Info().Str("job_id", job.ID).Str("input_type", string(job.InputType)).Msg("job queued")
	a.json(w, http.StatusCreated, toJobResponse(job))
}

// CreateBatch queues every job of the batch or none of them.
func (a *App) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgInvalidBody)
		return
	}
	if len(req.Jobs) == 0 {
		a.error(w, r, http.StatusBadRequest, "bad_request", i18n.MsgBatchEmpty)
		return
	}
	jobs := make([]domain.Job, 0, len(req.Jobs))
	for i, item := range req.Jobs {
		job, err := a.buildJob(item, nil)
		if err != nil {
			a.jobError(w, r, fmt.Errorf("jobs[%d]: %w", i, err))
			return
		}
		jobs = append(jobs, job)
	}
	if err := a.Store.AddAll(jobs); err != nil {
		a.jobError(w, r, err)
		return
	}
	a.log().Info().Int("count", len(jobs)).Msg("batch queued")
	a.json(w, http.StatusCreated, jobListResponse{Jobs: toJobResponses(jobs)})
}

// DeleteJob removes an idle or finished job along with its stored video.
func (a *App) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Store.Remove(id)
	if err != nil {
		a.jobError(w, r, err)
		return
	}
	if key, ok := a.Files.KeyFromURL(job.VideoResult); ok {
		if err := a.Files.Delete(r.Context(), key); err != nil {
			a.log().Warn().Err(err).Str("job_id", id).Msg("delete stored video")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateJob queues a fresh idle copy of an existing job.
func (a *App) DuplicateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Store.Duplicate(id)
	if err != nil {
		a.jobError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, toJobResponse(job))
}

func (a *App) jobFromMultipart(r *http.Request) (domain.Job, error) {
	if err := r.ParseMultipartForm(media.MaxUploadBytes); err != nil {
		return domain.Job{}, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
	}
	req := jobRequest{
		Prompt:      r.FormValue("prompt"),
		InputType:   r.FormValue("input_type"),
		Model:       r.FormValue("model"),
		AspectRatio: r.FormValue("aspect_ratio"),
		Resolution:  r.FormValue("resolution"),
		Label:       r.FormValue("label"),
	}
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return a.buildJob(req, nil)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, media.MaxUploadBytes+1))
	if err != nil {
		return domain.Job{}, fmt.Errorf("read image: %w", err)
	}
	return a.buildJob(req, data)
}

func (a *App) buildJob(req jobRequest, image []byte) (domain.Job, error) {
	if image == nil && req.ImageBase64 != "" {
		raw := req.ImageBase64
		if idx := strings.Index(raw, ";base64,"); idx >= 0 && strings.HasPrefix(raw, "data:") {
			raw = raw[idx+len(";base64,"):]
		}
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return domain.Job{}, fmt.Errorf("%w: image_base64 is not valid base64", domain.ErrInvalidJob)
		}
		image = decoded
	}
	if strings.TrimSpace(req.Model) == "" {
		req.Model = a.DefaultModel
	}
	params := domain.JobParams{
		Prompt:      req.Prompt,
		InputType:   domain.InputType(strings.ToLower(strings.TrimSpace(req.InputType))),
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		Label:       req.Label,
	}
	if image != nil {
		src, err := media.PrepareImage(image, a.ImageMaxEdge)
		if err != nil {
			return domain.Job{}, err
		}
		params.Image = src
	}
	return domain.NewJob(params, a.now())
}

func (a *App) jobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, "not_found", i18n.MsgJobNotFound, chi.URLParam(r, "id"))
	case errors.Is(err, domain.ErrJobProcessing):
		a.error(w, r, http.StatusConflict, "job_processing", i18n.MsgJobProcessing, chi.URLParam(r, "id"))
	case errors.Is(err, domain.ErrInvalidJob), errors.Is(err, domain.ErrDuplicateJob):
		detail := strings.ReplaceAll(err.Error(), domain.ErrInvalidJob.Error()+": ", "")
		a.error(w, r, http.StatusBadRequest, "invalid_job", i18n.MsgInvalidJob, detail)
	default:
		a.log().Error().Err(err).Msg("job request failed")
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
	}
}
