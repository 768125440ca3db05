package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"meeting-actions-go/internal/actionable"
	"meeting-actions-go/internal/aggregator"
	"meeting-actions-go/internal/logger"
	"meeting-actions-go/internal/types"
	"meeting-actions-go/internal/worker"
)

type meetingStore interface {
	LoadMeeting(ctx context.Context, id int64) (*types.Meeting, error)
	ListTasks(ctx context.Context, meetingID int64) ([]types.Task, error)
	Ping(ctx context.Context) error
}

type enqueuer interface {
	EnqueueMeeting(ctx context.Context, meetingID int64) (*asynq.TaskInfo, error)
}

type server struct {
	store meetingStore
	queue enqueuer
	log   *logger.Logger
}

type processResponse struct {
	MeetingID     int64               `json:"meeting_id"`
	Status        types.MeetingStatus `json:"status"`
	TaskID        string              `json:"task_id"`
	AlreadyQueued bool                `json:"already_queued,omitempty"`
}

type meetingResponse struct {
	Meeting         *types.Meeting          `json:"meeting"`
	Tasks           []types.Task            `json:"tasks"`
	Summary         aggregator.Summary      `json:"summary"`
	Recommendations []actionable.ActionCard `json:"recommendations"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /meetings/{id}/process", s.handleProcess)
	mux.HandleFunc("GET /meetings/{id}", s.handleMeeting)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r)
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		reqLog.WithError(err).Warn("health check failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "ok")
}

// handleProcess enqueues a pending meeting. The run itself happens on a
// worker; callers poll GET /meetings/{id}.
func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "process")
	id, ok := meetingID(w, r)
	if !ok {
		return
	}
	reqLog = reqLog.WithField("meeting_id", id)

	m, err := s.store.LoadMeeting(r.Context(), id)
	if err != nil {
		reqLog.WithError(err).Error("load meeting failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "meeting not found", http.StatusNotFound)
		return
	}
	if m.Status != types.MeetingPending {
		writeJSON(w, reqLog, http.StatusConflict, map[string]any{
			"meeting_id": id,
			"status":     m.Status,
			"error":      "only pending meetings can be processed",
		})
		return
	}

	resp := processResponse{MeetingID: id, Status: m.Status, TaskID: worker.TaskID(id)}
	if _, err := s.queue.EnqueueMeeting(r.Context(), id); err != nil {
		if !errors.Is(err, worker.ErrAlreadyQueued) {
			reqLog.WithError(err).Error("enqueue failed")
			http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
			return
		}
		resp.AlreadyQueued = true
	}
	reqLog.WithField("already_queued", resp.AlreadyQueued).Info("meeting queued")
	writeJSON(w, reqLog, http.StatusAccepted, resp)
}

func (s *server) handleMeeting(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "meeting")
	id, ok := meetingID(w, r)
	if !ok {
		return
	}

	m, err := s.store.LoadMeeting(r.Context(), id)
	if err != nil {
		reqLog.WithError(err).Error("load meeting failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "meeting not found", http.StatusNotFound)
		return
	}
	tasks, err := s.store.ListTasks(r.Context(), id)
	if err != nil {
		reqLog.WithError(err).Error("list tasks failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	summary := aggregator.Summarize(tasks)
	writeJSON(w, reqLog, http.StatusOK, meetingResponse{
		Meeting:         m,
		Tasks:           tasks,
		Summary:         summary,
		Recommendations: actionable.Generate(summary),
	})
}

func meetingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid meeting id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
