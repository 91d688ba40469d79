package http

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"rageval/src/core/evaluation"
	"rageval/src/infrastructure/job"
)

const (
	DefaultTopK = 5
	MaxTopK     = 20
)

var errInvalidEndpointURL = errors.New("endpoint_url must be a valid http(s) URL")

type Handler struct {
	jobs        evaluation.JobRepository
	sampler     *evaluation.Sampler
	queue       *job.Service
	datasetSize int
}

func NewHandler(jobs evaluation.JobRepository, sampler *evaluation.Sampler, queue *job.Service, datasetSize int) *Handler {
	return &Handler{
		jobs:        jobs,
		sampler:     sampler,
		queue:       queue,
		datasetSize: datasetSize,
	}
}

// RegisterRoutes registers the evaluation job API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	v1.POST("/jobs", h.SubmitJob)
	v1.GET("/jobs/:id", h.GetJobStatus)
	v1.GET("/jobs/:id/result", h.GetJobResult)
	v1.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	var code string
	switch {
	case errors.Is(err, evaluation.ErrJobNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, errInvalidEndpointURL):
		code = "INVALID_SUBMISSION"
		status = http.StatusBadRequest
	case status == http.StatusBadRequest:
		code = "INVALID_SUBMISSION"
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

type submitJobRequest struct {
	SubmitterID string `json:"submitter_id" binding:"required"`
	EndpointURL string `json:"endpoint_url" binding:"required"`
	TopK        int    `json:"top_k"`
}

type submitJobResponse struct {
	JobID  string               `json:"job_id"`
	Status evaluation.JobStatus `json:"status"`
}

type jobStatusResponse struct {
	JobID          string               `json:"job_id"`
	SubmitterID    string               `json:"submitter_id"`
	Status         evaluation.JobStatus `json:"status"`
	TotalCases     int                  `json:"total_cases"`
	ProcessedCases int                  `json:"processed_cases"`
	CreatedAt      time.Time            `json:"created_at"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	FinishedAt     *time.Time           `json:"finished_at,omitempty"`
	ErrorMessage   *string              `json:"error_message,omitempty"`
}

type jobResultResponse struct {
	jobStatusResponse
	EndpointURL string                   `json:"endpoint_url"`
	TopK        int                      `json:"top_k"`
	TotalScore  float64                  `json:"total_score"`
	Scores      *evaluation.ScoreSummary `json:"scores,omitempty"`
	Results     []evaluation.CaseResult  `json:"results"`
}

// SubmitJob godoc
// @Summary Submit a RAG backend for evaluation
// @Tags jobs
// @Accept json
// @Produce json
// @Param body body submitJobRequest true "Submission"
// @Success 201 {object} submitJobResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /jobs [post]
func (h *Handler) SubmitJob(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	if err := validateEndpointURL(req.EndpointURL); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	if req.TopK == 0 {
		req.TopK = DefaultTopK
	}
	if req.TopK < 1 || req.TopK > MaxTopK {
		sendError(c, http.StatusBadRequest, errors.New("top_k must be between 1 and 20"))
		return
	}

	ctx := c.Request.Context()

	pairs, err := h.sampler.Sample(ctx, h.datasetSize)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if len(pairs) == 0 {
		sendError(c, http.StatusInternalServerError, errors.New("benchmark question pool is empty"))
		return
	}

	j := evaluation.NewJob(req.SubmitterID, req.EndpointURL, req.TopK)
	j.TotalCases = len(pairs)
	if err := j.MarkQueued(); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if err := h.jobs.Create(ctx, j); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	payload, err := job.NewEvaluationPayload(j, pairs)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if err := h.queue.Enqueue(ctx, payload); err != nil {
		// The job can never be picked up; surface that on the record.
		if failErr := j.Fail("failed to enqueue job: "+err.Error(), time.Now().UTC()); failErr == nil {
			_ = h.jobs.Save(ctx, j)
		}
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusCreated, submitJobResponse{JobID: j.ID, Status: j.Status})
}

// GetJobStatus godoc
// @Summary Get evaluation job status
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} jobStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [get]
func (h *Handler) GetJobStatus(c *gin.Context) {
	j, err := h.loadJob(c)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, statusView(j))
}

// GetJobResult godoc
// @Summary Get full evaluation job results
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} jobResultResponse
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(c *gin.Context) {
	j, err := h.loadJob(c)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	results := j.Results
	if results == nil {
		results = []evaluation.CaseResult{}
	}
	sendJSON(c, http.StatusOK, jobResultResponse{
		jobStatusResponse: statusView(j),
		EndpointURL:       j.EndpointURL,
		TopK:              j.TopK,
		TotalScore:        j.TotalScore,
		Scores:            j.Scores,
		Results:           results,
	})
}

// CheckHealth godoc
// @Summary Service health check
// @Tags system
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	sendJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) loadJob(c *gin.Context) (*evaluation.Job, error) {
	j, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, evaluation.ErrJobNotFound
	}
	return j, nil
}

func statusView(j *evaluation.Job) jobStatusResponse {
	return jobStatusResponse{
		JobID:          j.ID,
		SubmitterID:    j.SubmitterID,
		Status:         j.Status,
		TotalCases:     j.TotalCases,
		ProcessedCases: j.ProcessedCases,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		FinishedAt:     j.FinishedAt,
		ErrorMessage:   j.ErrorMessage,
	}
}

func validateEndpointURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return errInvalidEndpointURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return errInvalidEndpointURL
	}
	return nil
}
