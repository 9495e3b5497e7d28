// Package speech is the HTTP transport for the synthesis API: single
// and multi-block synthesis, progress polling, artifact download, and
// the voice catalogue.
package speech

import (
	"bytes"
	"context"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"voiceweave-server-go/internal/domain/artifact"
	"voiceweave-server-go/internal/domain/audio"
	"voiceweave-server-go/internal/domain/eventbus"
	"voiceweave-server-go/internal/domain/job"
	"voiceweave-server-go/internal/domain/pipeline"
	"voiceweave-server-go/internal/domain/segment"
	"voiceweave-server-go/internal/domain/tts"
	"voiceweave-server-go/internal/platform/config"
	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
	httptransport "voiceweave-server-go/internal/transport/http"
)

// Service exposes the synthesis pipeline over HTTP.
type Service struct {
	config    *config.Config
	pipeline  *pipeline.Pipeline
	provider  tts.Provider
	jobs      job.Store
	artifacts *artifact.Store
	logger    *logging.Logger
	startedAt time.Time
}

// NewService wires the speech transport.
func NewService(
	cfg *config.Config,
	pl *pipeline.Pipeline,
	provider tts.Provider,
	jobs job.Store,
	artifacts *artifact.Store,
	logger *logging.Logger,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "speech.new", "config is required")
	}
	if pl == nil {
		return nil, errors.New(errors.KindConfig, "speech.new", "pipeline is required")
	}
	if provider == nil {
		return nil, errors.New(errors.KindConfig, "speech.new", "tts provider is required")
	}

	return &Service{
		config:    cfg,
		pipeline:  pl,
		provider:  provider,
		jobs:      jobs,
		artifacts: artifacts,
		logger:    logger,
		startedAt: time.Now(),
	}, nil
}

// Register mounts the speech routes on the given group.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.POST("/tts", s.handleSynthesize)
	router.POST("/tts-all", s.handleSynthesizeAll)
	router.GET("/progress/:job_id", s.handleProgress)
	router.GET("/download/:name", s.handleDownload)
	router.GET("/voices", s.handleVoices)
	router.GET("/system/status", s.handleSystemStatus)

	s.logger.InfoTag("HTTP", "speech routes registered")
	return nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	JobID string `json:"job_id"`
}

// handleSynthesize renders one annotated text into a WAV download.
func (s *Service) handleSynthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "text is required", nil)
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = s.config.TTS.DefaultVoice
	}

	segs := segment.Parse(req.Text)

	ctx, cancel := s.synthesisContext(c.Request.Context(), 1)
	defer cancel()

	var progress pipeline.ProgressFunc
	if req.JobID != "" && s.jobs != nil {
		if err := s.jobs.Create(ctx, req.JobID, job.Record{Total: len(segs)}); err != nil {
			s.logger.WarnTag("JOB", "failed to create job %s: %v", req.JobID, err)
		}
		progress = func(done, total int, status string) {
			rec := job.Record{Done: done, Total: total, Status: status}
			if err := s.jobs.Update(ctx, req.JobID, rec); err != nil {
				s.logger.WarnTag("JOB", "failed to update job %s: %v", req.JobID, err)
			}
		}
	}

	clip, err := s.pipeline.Run(ctx, segs, voice, progress)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "synthesis failed", nil)
		return
	}
	if req.JobID != "" && s.jobs != nil {
		rec := job.Record{Done: len(segs), Total: len(segs), Status: job.StatusComplete}
		if err := s.jobs.Update(ctx, req.JobID, rec); err != nil {
			s.logger.WarnTag("JOB", "failed to complete job %s: %v", req.JobID, err)
		}
	}

	handle, ok := s.storeClip(c, clip)
	if !ok {
		return
	}

	eventbus.Publish(eventbus.TopicSynthesisCompleted)
	c.FileAttachment(handle.Path(), handle.Name)
}

type synthesizeAllRequest struct {
	Blocks []pipeline.Block `json:"blocks"`
	Voice  string           `json:"voice"`
}

// handleSynthesizeAll renders an ordered list of blocks into one WAV
// file. The response carries the job id so clients polling progress
// from another connection can follow along, plus the download path.
func (s *Service) handleSynthesizeAll(c *gin.Context) {
	var req synthesizeAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	blocks := make([]pipeline.Block, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		if strings.TrimSpace(b.Text) != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		httptransport.RespondError(c, http.StatusBadRequest, "at least one non-empty block is required", nil)
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = s.config.TTS.DefaultVoice
	}

	ctx, cancel := s.synthesisContext(c.Request.Context(), len(blocks))
	defer cancel()

	jobID := job.NewID()
	if s.jobs != nil {
		rec := job.Record{Total: len(blocks), Status: "Synthesizing block 0/" + strconv.Itoa(len(blocks))}
		if err := s.jobs.Create(ctx, jobID, rec); err != nil {
			s.logger.WarnTag("JOB", "failed to create job %s: %v", jobID, err)
		}
	}

	clip, err := s.pipeline.RunBlocks(ctx, blocks, voice, jobID, s.jobs)
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "synthesis failed", nil)
		return
	}

	handle, ok := s.storeClip(c, clip)
	if !ok {
		return
	}

	eventbus.Publish(eventbus.TopicSynthesisCompleted)
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"job_id":   jobID,
		"download": "/api/download/" + handle.Name,
		"progress": 100.0,
		"status":   job.StatusComplete,
	}, "")
}

// handleProgress reports a job's progress snapshot.
func (s *Service) handleProgress(c *gin.Context) {
	if s.jobs == nil {
		httptransport.RespondError(c, http.StatusNotFound, "job tracking disabled", nil)
		return
	}

	rec, err := s.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "job not found", nil)
		return
	}

	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"progress":      rec.Percentage(),
		"status":        rec.Status,
		"done":          rec.Done,
		"total":         rec.Total,
		"segment_done":  rec.SegmentDone,
		"segment_total": rec.SegmentTotal,
	}, "")
}

// handleDownload serves a previously created artifact.
func (s *Service) handleDownload(c *gin.Context) {
	handle, err := s.artifacts.Resolve(c.Param("name"))
	if err != nil {
		httptransport.RespondError(c, http.StatusNotFound, "file not found", nil)
		return
	}
	c.FileAttachment(handle.Path(), handle.Name)
}

// handleVoices lists the active provider's voices.
func (s *Service) handleVoices(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"voices":  s.provider.Voices(),
		"default": s.config.TTS.DefaultVoice,
	}, "")
}

// handleSystemStatus reports process and host health.
func (s *Service) handleSystemStatus(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := gin.H{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_bytes":     m.HeapAlloc,
		"provider":       s.config.TTS.Provider,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_used_percent"] = vm.UsedPercent
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}

	httptransport.RespondSuccess(c, http.StatusOK, status, "")
}

// storeClip encodes a clip to WAV, stores it as an artifact, and
// schedules its deferred removal.
func (s *Service) storeClip(c *gin.Context, clip audio.Clip) (artifact.Handle, bool) {
	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, clip); err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to encode audio", nil)
		return artifact.Handle{}, false
	}

	handle, err := s.artifacts.Create(buf.Bytes(), "wav")
	if err != nil {
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to store audio", nil)
		return artifact.Handle{}, false
	}

	s.artifacts.ScheduleDelete(handle, s.config.Output.CleanupDelay)
	return handle, true
}

// synthesisContext derives the request deadline. The configured
// timeout covers one unit of work and scales with the block count so
// long multi-block jobs are not cut short.
func (s *Service) synthesisContext(parent context.Context, units int) (context.Context, context.CancelFunc) {
	timeout := s.config.TTS.Timeout
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	if units > 1 {
		timeout = timeout * time.Duration(units)
	}
	return context.WithTimeout(parent, timeout)
}
