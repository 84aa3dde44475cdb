package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidmark/vidmark-agent/internal/annotate"
	"github.com/vidmark/vidmark-agent/internal/config"
	"github.com/vidmark/vidmark-agent/internal/dataset"
	"github.com/vidmark/vidmark-agent/internal/jobs"
	"github.com/vidmark/vidmark-agent/internal/library"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.DB, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/videos", listVideosHandler(cfg))
		r.Post("/videos/scan", scanHandler(cfg))
		r.Get("/videos/{id}", getVideoHandler(cfg))

		r.Post("/videos/{id}/mark-start", markStartHandler(cfg))
		r.Post("/videos/{id}/mark-end", markEndHandler(cfg))
		r.Post("/videos/{id}/commit", commitHandler(cfg))
		r.Get("/videos/{id}/session", sessionHandler(cfg))
		r.Get("/videos/{id}/segments", listSegmentsHandler(cfg))
		r.Delete("/videos/{id}/segments/last", removeLastHandler(cfg))
		r.Delete("/videos/{id}/segments", removeAllHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Post("/dataset/build", buildDatasetHandler(cfg))
		r.Get("/dataset/summary", datasetSummaryHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))

		r.Get("/preview/clip", previewClipHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		videos, _ := cfg.Videos.List(ctx)
		segmentsCount, _ := cfg.Store.Count(ctx)
		recentJobs, _ := cfg.Jobs.List(ctx, 10)

		state := "idle"
		lastError := ""
		jobsRunning := 0
		var activeJob *JobResponse

		paused := cfg.Runner != nil && cfg.Runner.IsPaused()
		if paused {
			state = "paused"
		}

		for _, j := range recentJobs {
			if j.Status == jobs.JobStatusRunning {
				state = "exporting"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == jobs.JobStatusFailed && lastError == "" {
				lastError = j.Error
			}
		}
		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:         state,
			LastError:     lastError,
			VideosCount:   len(videos),
			SegmentsCount: segmentsCount,
			JobsRunning:   jobsRunning,
			RunnerPaused:  paused,
			ActiveJob:     activeJob,
		})
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Videos.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}

		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func scanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := cfg.Scanner.Scan(r.Context())
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "SCAN_FAILED")
			return
		}
		WriteJSON(w, http.StatusOK, ScanResponse{
			Added:     result.Added,
			Updated:   result.Updated,
			Unchanged: result.Unchanged,
			Failed:    result.Failed,
			Removed:   result.Removed,
		})
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(*video))
	}
}

func markStartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		req, ok := decodeMark(w, r)
		if !ok {
			return
		}

		session, err := cfg.Store.MarkStart(video.ID, req.Time)
		if err != nil {
			writeAnnotateError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(session))
	}
}

func markEndHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		req, ok := decodeMark(w, r)
		if !ok {
			return
		}

		session, err := cfg.Store.MarkEnd(video.ID, req.Time)
		if err != nil {
			writeAnnotateError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(session))
	}
}

func commitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		segment, err := cfg.Store.Commit(r.Context(), video.ID, video.Duration)
		if err != nil {
			writeAnnotateError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, SegmentToResponse(*segment))
	}
}

func sessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		session := cfg.Store.Session(video.ID)
		if session == nil {
			WriteError(w, http.StatusNotFound, "no active session", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(session))
	}
}

func listSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		segments, err := cfg.Store.List(r.Context(), video.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := SegmentsResponse{Segments: make([]SegmentResponse, len(segments))}
		for i, s := range segments {
			resp.Segments[i] = SegmentToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func removeLastHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		removed, err := cfg.Store.RemoveLast(r.Context(), video.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if removed == nil {
			WriteError(w, http.StatusNotFound, "no segments to remove", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, SegmentToResponse(*removed))
	}
}

func removeAllHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := lookupVideo(w, r, cfg)
		if !ok {
			return
		}

		removed, err := cfg.Store.RemoveAll(r.Context(), video.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, RemoveResponse{Removed: removed})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Videos.Get(r.Context(), req.VideoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if video == nil {
			WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
			return
		}

		job, err := cfg.Jobs.Enqueue(r.Context(), jobs.JobTypeExport, video.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusAccepted, EnqueueResponse{JobID: job.ID})
	}
}

func buildDatasetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Jobs.Enqueue(r.Context(), jobs.JobTypeMerge, "")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusAccepted, EnqueueResponse{JobID: job.ID})
	}
}

func datasetSummaryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := dataset.LoadSummary(cfg.DatasetDir)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if summary == nil {
			WriteError(w, http.StatusNotFound, "no dataset built yet", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobList, err := cfg.Jobs.List(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobList))}
		for i, j := range jobList {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Jobs.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func previewClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("video_id")
		indexStr := r.URL.Query().Get("segment_index")
		if videoID == "" || indexStr == "" {
			WriteError(w, http.StatusBadRequest, "video_id and segment_index are required", "BAD_REQUEST")
			return
		}
		index, err := strconv.Atoi(indexStr)
		if err != nil || index < 1 {
			WriteError(w, http.StatusBadRequest, "segment_index must be a positive integer", "BAD_REQUEST")
			return
		}

		if err := cfg.Preview.ServeClip(w, r, videoID, index); err != nil {
			cfg.Logger.Error("clip preview error", "error", err,
				"video_id", videoID, "segment_index", index)
		}
	}
}

func lookupVideo(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (*library.Video, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "video id required", "BAD_REQUEST")
		return nil, false
	}

	video, err := cfg.Videos.Get(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	if video == nil {
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
		return nil, false
	}
	return video, true
}

func decodeMark(w http.ResponseWriter, r *http.Request) (*MarkRequest, bool) {
	var req MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return nil, false
	}
	return &req, true
}

func writeAnnotateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, annotate.ErrNoActiveSegment):
		WriteError(w, http.StatusConflict, err.Error(), "NO_ACTIVE_SEGMENT")
	case errors.Is(err, annotate.ErrInvalidSegmentBounds):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_SEGMENT_BOUNDS")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
