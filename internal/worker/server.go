package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/smartlearn/internal/config"
	"github.com/dunamismax/smartlearn/internal/learning"
	"github.com/dunamismax/smartlearn/internal/queue"
	"github.com/dunamismax/smartlearn/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	progress      progressRecalculator
	webhookClient webhookSender
	webhookURL    string
	metrics       *metrics
	tracer        trace.Tracer
}

type progressRecalculator interface {
	Recalculate(ctx context.Context, studentID, subjectID string) (learning.ProgressUpdate, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	progress progressRecalculator,
	webhookClient *webhook.Client,
	webhookURL string,
) (*Server, error) {
	if progress == nil {
		return nil, fmt.Errorf("progress recalculator is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		progress:   progress,
		webhookURL: webhookURL,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("smartlearn/worker"),
	}
	if webhookClient != nil {
		s.webhookClient = webhookClient
	}
	return s, nil
}

func (s *Server) Run() error {
	return s.server.Run(s.mux())
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeRecalculateProgress, s.handleRecalculateProgress)
	return mux
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleRecalculateProgress(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := outcomeFailed

	payload, err := queue.ParseRecalculateProgressPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.recalculate_progress", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("progress.student_id", payload.StudentID),
		attribute.String("progress.subject_id", payload.SubjectID),
		attribute.String("progress.reason", payload.Reason),
	)
	defer span.End()

	s.metrics.activeTasks.Inc()
	defer func() {
		s.metrics.activeTasks.Dec()
		s.metrics.taskDuration.WithLabelValues(payload.Reason, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.tasksTotal.WithLabelValues(payload.Reason, outcome).Inc()
	}()

	update, err := s.progress.Recalculate(ctx, payload.StudentID, payload.SubjectID)
	if errors.Is(err, learning.ErrNotFound) {
		// The student unenrolled after the task was queued.
		outcome = outcomeSkipped
		s.logger.Printf("progress skipped student_id=%s subject_id=%s reason=%s err=%v", payload.StudentID, payload.SubjectID, payload.Reason, err)
		span.SetStatus(codes.Ok, "enrollment gone")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recalculation failed")
		return fmt.Errorf("recalculate progress: %w", err)
	}

	p := update.Progress
	s.logger.Printf(
		"progress updated student_id=%s subject_id=%s reason=%s percentage=%d completed=%t",
		p.StudentID, p.SubjectID, payload.Reason, p.Percentage, p.IsCompleted,
	)
	s.metrics.progressPercentage.Observe(float64(p.Percentage))
	if update.JustCompleted {
		s.metrics.completionsTotal.Inc()
	}

	body := map[string]any{
		"student_id":            p.StudentID,
		"subject_id":            p.SubjectID,
		"reason":                payload.Reason,
		"percentage":            p.Percentage,
		"assignments_completed": p.AssignmentsCompleted,
		"total_assignments":     p.TotalAssignments,
		"materials_viewed":      p.MaterialsViewed,
		"total_materials":       p.TotalMaterials,
		"is_completed":          p.IsCompleted,
		"requested_at":          payload.RequestedAt,
		"updated_at":            p.LastActivity,
	}
	if err := s.dispatchWebhook(ctx, payload, webhook.EventProgressUpdated, body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}
	if update.JustCompleted {
		body["completion_date"] = p.CompletionDate
		if err := s.dispatchWebhook(ctx, payload, webhook.EventCourseCompleted, body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "webhook dispatch failed")
			return err
		}
	}

	outcome = outcomeUpdated
	span.SetStatus(codes.Ok, "recalculated")
	return nil
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.RecalculateProgressPayload, event string, body map[string]any) error {
	if s.webhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, s.webhookURL, event, body); err != nil {
		s.metrics.webhookFailures.WithLabelValues(event).Inc()
		s.logger.Printf("webhook delivery failed student_id=%s subject_id=%s event=%s err=%v", payload.StudentID, payload.SubjectID, event, err)
		if errors.Is(err, webhook.ErrRejected) {
			return fmt.Errorf("dispatch webhook: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}
