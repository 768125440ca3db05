package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Server consumes meeting runs.
type Server struct {
	server *asynq.Server
	log    *logrus.Entry
}

type ServerConfig struct {
	Concurrency     int
	Queues          map[string]int
	ShutdownTimeout time.Duration
}

func NewServer(redisOpt asynq.RedisClientOpt, cfg ServerConfig, log *logrus.Entry) *Server {
	con := cfg.Concurrency
	if con <= 0 {
		con = 4
	}
	qs := cfg.Queues
	if qs == nil {
		qs = map[string]int{DefaultQueue: 1}
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     con,
		Queues:          qs,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          log,
		LogLevel:        asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			log.WithError(err).WithField("type", t.Type()).Error("task failed")
		}),
	})
	return &Server{server: server, log: log}
}

// Middleware to log task start and finish
func (s *Server) lifecycleMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		entry := s.log.WithField("type", t.Type())
		if id, ok := asynq.GetTaskID(ctx); ok {
			entry = entry.WithField("task_id", id)
		}
		start := time.Now()
		entry.Debug("task started")
		err := next.ProcessTask(ctx, t)
		entry.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("task finished")
		return err
	})
}

// Mux routes meeting:process tasks to h.
func Mux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeProcessMeeting, h)
	return mux
}

// Run blocks until the process receives a termination signal.
func (s *Server) Run(h *Handler) error {
	return s.server.Run(s.lifecycleMiddleware(Mux(h)))
}

// Start runs the server in the background; pair with Shutdown.
func (s *Server) Start(h *Handler) error {
	return s.server.Start(s.lifecycleMiddleware(Mux(h)))
}

func (s *Server) Shutdown() { s.server.Shutdown() }
