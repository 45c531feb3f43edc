package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chimera/internal/catalog"
	"chimera/internal/logging"
	"chimera/internal/queue"
	"chimera/internal/watch"
)

// workerLoop is the single queue consumer. Each job runs to completion
// before the next is pulled; a job failure is recorded and the loop
// continues unconditionally.
func (d *Daemon) workerLoop(ctx context.Context) {
	defer d.wg.Done()

	pollTimeout := time.Duration(d.cfg.Daemon.QueuePollTimeout) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := d.queue.Dequeue(ctx, pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Warn("dequeue failed", logging.Args(logging.Error(err))...)
			continue
		}
		if job == nil {
			// Timeout, no work right now.
			continue
		}

		d.runJob(ctx, job)
	}
}

func (d *Daemon) runJob(ctx context.Context, job *queue.Job) {
	// Shutdown cancels the worker loop between jobs only; a job already in
	// flight runs to its natural completion, so the job and its status
	// updates use a context detached from cancellation. Only a process
	// crash leaves a job in running state for the next startup to reset.
	jobCtx := context.WithoutCancel(ctx)

	if err := d.queue.UpdateStatus(jobCtx, job.ID, queue.StatusRunning, ""); err != nil {
		d.logger.Warn("failed to mark job running",
			logging.Args(logging.String(logging.FieldJobID, job.ID), logging.Error(err))...)
		// Still pending on disk but already popped from the heap; put it
		// back so it does not go invisible until a restart.
		d.queue.Requeue(job)
		return
	}

	d.telemetry.Begin(job)
	start := time.Now()
	err := d.dispatch(jobCtx, job)
	duration := time.Since(start)
	d.telemetry.End(job, duration, err)

	if err != nil {
		d.logger.Error("job failed",
			logging.Args(
				logging.String(logging.FieldJobID, job.ID),
				logging.String(logging.FieldJobType, string(job.Type)),
				logging.Duration(logging.FieldDuration, duration),
				logging.Error(err),
			)...)
		if updateErr := d.queue.UpdateStatus(jobCtx, job.ID, queue.StatusFailed, err.Error()); updateErr != nil {
			d.logger.Warn("failed to mark job failed",
				logging.Args(logging.String(logging.FieldJobID, job.ID), logging.Error(updateErr))...)
		}
		return
	}

	d.logger.Info("job completed",
		logging.Args(
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobType, string(job.Type)),
			logging.Duration(logging.FieldDuration, duration),
		)...)
	if err := d.queue.UpdateStatus(jobCtx, job.ID, queue.StatusCompleted, ""); err != nil {
		d.logger.Warn("failed to mark job completed",
			logging.Args(logging.String(logging.FieldJobID, job.ID), logging.Error(err))...)
	}
}

// dispatch routes a job to its handler. The switch is exhaustive over the
// job types; an unknown type is a failure, not a silent skip.
func (d *Daemon) dispatch(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.TypeFileExtraction:
		payload, err := job.FileExtraction()
		if err != nil {
			return err
		}
		return d.handleFileExtraction(ctx, payload.Path)
	case queue.TypeBatchExtraction:
		payload, err := job.BatchExtraction()
		if err != nil {
			return err
		}
		return d.handleBatchExtraction(ctx, payload.Roots)
	case queue.TypeConversationExport:
		payload, err := job.ConversationExport()
		if err != nil {
			return err
		}
		return d.handleConversationExport(ctx, payload.Path)
	case queue.TypeCorrelation:
		return d.handleCorrelation(ctx)
	case queue.TypeDiscovery:
		_, err := d.correlation.Surface(ctx)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (d *Daemon) handleFileExtraction(ctx context.Context, path string) error {
	result, err := d.pipeline.ProcessFile(ctx, path)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}

// handleBatchExtraction discovers files under the roots and re-enqueues one
// file-extraction job per file. Files changed within the recent-change
// window get the higher priority.
func (d *Daemon) handleBatchExtraction(ctx context.Context, roots []string) error {
	if len(roots) == 0 {
		roots = d.cfg.Paths.LibraryRoots
	}
	recentWindow := time.Duration(d.cfg.Daemon.RecentChangeWindow) * time.Minute
	cutoff := time.Now().Add(-recentWindow)

	enqueued := 0
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				d.logger.Warn("batch walk error",
					logging.Args(logging.String(logging.FieldFilePath, path), logging.Error(err))...)
				return nil
			}
			if entry.IsDir() {
				if strings.HasPrefix(entry.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			priority := queue.PriorityBackground
			if info, infoErr := entry.Info(); infoErr == nil && info.ModTime().After(cutoff) {
				priority = queue.PriorityRecentChange
			}
			job, jobErr := queue.NewFileExtractionJob(path, priority)
			if jobErr != nil {
				return jobErr
			}
			if _, enqErr := d.queue.Enqueue(ctx, job); enqErr != nil {
				return enqErr
			}
			enqueued++
			return nil
		})
		if err != nil {
			return fmt.Errorf("walk %s: %w", root, err)
		}
	}

	d.logger.Info("batch discovery complete", logging.Args(logging.Int("enqueued", enqueued))...)
	return nil
}

func (d *Daemon) handleConversationExport(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	conversations, format, err := d.exports.Parse(data)
	if err != nil {
		return err
	}

	for _, conversation := range conversations {
		messages := make([]catalog.Message, len(conversation.Messages))
		for i, message := range conversation.Messages {
			messages[i] = catalog.Message{
				Seq:     message.Seq,
				Role:    message.Role,
				Content: message.Content,
				SentAt:  message.SentAt,
			}
		}
		if _, err := d.catalog.ReplaceConversation(ctx, &catalog.Conversation{
			SourcePath: path,
			ExternalID: conversation.ExternalID,
			Title:      conversation.Title,
			StartedAt:  conversation.StartedAt,
		}, messages); err != nil {
			return err
		}
	}

	d.logger.Info("conversation export ingested",
		logging.Args(
			logging.String(logging.FieldFilePath, path),
			logging.String("format", format),
			logging.Int("conversations", len(conversations)),
		)...)
	return nil
}

// handleCorrelation runs a full correlation pass and chains a discovery
// job so qualifying patterns surface right after.
func (d *Daemon) handleCorrelation(ctx context.Context) error {
	if _, err := d.correlation.Run(ctx); err != nil {
		return err
	}
	job, err := queue.NewDiscoveryJob(queue.PriorityBackground)
	if err != nil {
		return err
	}
	_, err = d.queue.Enqueue(ctx, job)
	return err
}

// watchBridge drains the watcher channel into the queue. Changes within
// the recent-change window enqueue at the recent-change priority.
func (d *Daemon) watchBridge(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if event.Type == watch.EventRemoved {
				continue
			}
			job, err := queue.NewFileExtractionJob(event.Path, queue.PriorityRecentChange)
			if err != nil {
				continue
			}
			if _, err := d.queue.Enqueue(ctx, job); err != nil {
				d.logger.Warn("failed to enqueue watched change",
					logging.Args(logging.String(logging.FieldFilePath, event.Path), logging.Error(err))...)
			}
		}
	}
}
