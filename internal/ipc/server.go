package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"chimera/internal/catalog"
	"chimera/internal/daemon"
	"chimera/internal/logging"
	"chimera/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Chimera", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Args(logging.Error(err))...)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.Args(logging.String("socket", s.path), logging.Error(err))...)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// Submit enqueues a job described by type, priority, and payload.
func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	jobType, ok := queue.ParseType(req.Type)
	if !ok {
		return fmt.Errorf("unknown job type %q", req.Type)
	}
	priority := queue.Priority(req.Priority)
	if req.Priority == 0 {
		priority = queue.PriorityUserTriggered
	}

	job, err := buildJob(jobType, priority, req.Payload)
	if err != nil {
		return err
	}
	id, err := s.daemon.Queue().Enqueue(s.ctx, job)
	if err != nil {
		return err
	}
	resp.ID = id
	return nil
}

func buildJob(jobType queue.Type, priority queue.Priority, payload map[string]any) (*queue.Job, error) {
	stringField := func(key string) string {
		value, _ := payload[key].(string)
		return value
	}
	switch jobType {
	case queue.TypeFileExtraction:
		path := stringField("path")
		if path == "" {
			return nil, errors.New("file_extraction requires a path")
		}
		return queue.NewFileExtractionJob(path, priority)
	case queue.TypeBatchExtraction:
		var roots []string
		if raw, ok := payload["roots"].([]any); ok {
			for _, entry := range raw {
				if root, ok := entry.(string); ok {
					roots = append(roots, root)
				}
			}
		}
		return queue.NewBatchExtractionJob(roots, priority)
	case queue.TypeConversationExport:
		path := stringField("path")
		if path == "" {
			return nil, errors.New("conversation_export requires a path")
		}
		return queue.NewConversationExportJob(path, priority)
	case queue.TypeCorrelation:
		return queue.NewCorrelationJob(priority)
	case queue.TypeDiscovery:
		return queue.NewDiscoveryJob(priority)
	default:
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
}

// Status reports daemon and queue state. Stats are zeroed rather than
// erroring when the queue is unavailable.
func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Running = true
	resp.Ready = s.daemon.Ready()
	resp.PID = os.Getpid()
	resp.QueueStats = map[string]int{}
	resp.PendingByType = map[string]int{}
	resp.QueueDBPath = s.daemon.Queue().Store().Path()
	resp.LockPath = s.daemon.LockPath()

	stats, err := s.daemon.Queue().Stats(s.ctx)
	if err == nil {
		resp.QueueStats["total"] = stats.Total
		resp.QueueStats["pending"] = stats.Pending
		resp.QueueStats["running"] = stats.Running
		resp.QueueStats["completed"] = stats.Completed
		resp.QueueStats["failed"] = stats.Failed
		for jobType, count := range stats.PendingByType {
			resp.PendingByType[string(jobType)] = count
		}
	}

	if op := s.daemon.Telemetry().Current(); op != nil {
		resp.CurrentOperation = &OperationView{
			JobID:          op.JobID,
			JobType:        string(op.JobType),
			Elapsed:        op.Elapsed,
			EstimatedTotal: op.EstimatedTotal,
			JustCompleted:  op.JustCompleted,
			Succeeded:      op.Succeeded,
		}
	}
	return nil
}

// Stats reports catalog aggregates.
func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	stats, err := s.daemon.Catalog().Stats(s.ctx)
	if err != nil {
		return err
	}
	resp.Files = stats.Files
	resp.IndexedFiles = stats.IndexedFiles
	resp.FailedFiles = stats.FailedFiles
	resp.Chunks = stats.Chunks
	resp.RawEntities = stats.RawEntities
	resp.ConsolidatedEntities = stats.ConsolidatedEntities
	resp.Patterns = stats.Patterns
	resp.Discoveries = stats.Discoveries
	resp.Conversations = stats.Conversations
	return nil
}

// QueueList returns jobs filtered by optional statuses.
func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		if status, ok := queue.ParseStatus(raw); ok {
			statuses = append(statuses, status)
		}
	}
	jobs, err := s.daemon.Queue().Store().List(s.ctx, req.Limit, statuses...)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobView(job))
	}
	return nil
}

// Retry resets failed jobs to pending.
func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	retried, err := s.daemon.Queue().RetryFailed(s.ctx, req.IDs...)
	if err != nil {
		return err
	}
	resp.Retried = retried
	return nil
}

// Clear removes all jobs.
func (s *service) Clear(_ ClearRequest, resp *ClearResponse) error {
	removed, err := s.daemon.Queue().Store().Clear(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

// DatabaseHealth reports job-store diagnostics.
func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.Queue().Store().CheckHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = health.ColumnsPresent
	resp.MissingColumns = health.MissingColumns
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalJobs = health.TotalJobs
	resp.Error = health.Error
	return nil
}

// Discoveries lists discoveries filtered by optional statuses.
func (s *service) Discoveries(req DiscoveriesRequest, resp *DiscoveriesResponse) error {
	statuses := make([]catalog.DiscoveryStatus, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		statuses = append(statuses, catalog.DiscoveryStatus(raw))
	}
	discoveries, err := s.daemon.Catalog().ListDiscoveries(s.ctx, statuses...)
	if err != nil {
		return err
	}
	resp.Discoveries = make([]DiscoveryView, 0, len(discoveries))
	for _, discovery := range discoveries {
		resp.Discoveries = append(resp.Discoveries, DiscoveryView{
			ID:          discovery.ID,
			Type:        string(discovery.Type),
			Title:       discovery.Title,
			Description: discovery.Description,
			Confidence:  discovery.Confidence,
			SourceCount: discovery.SourceCount,
			Status:      string(discovery.Status),
			Feedback:    discovery.Feedback,
		})
	}
	return nil
}

// Feedback confirms or dismisses a discovery. The transition is one-way.
func (s *service) Feedback(req FeedbackRequest, resp *FeedbackResponse) error {
	var status catalog.DiscoveryStatus
	switch req.Action {
	case "confirm":
		status = catalog.DiscoveryConfirmed
	case "dismiss":
		status = catalog.DiscoveryDismissed
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
	if err := s.daemon.Catalog().SetDiscoveryStatus(s.ctx, req.ID, status, req.Feedback); err != nil {
		return err
	}
	resp.Status = string(status)
	return nil
}

func jobView(job *queue.Job) JobView {
	return JobView{
		ID:          job.ID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Priority:    int(job.Priority),
		Payload:     job.Payload,
		Error:       job.Error,
		RetryCount:  job.RetryCount,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
