package session

import (
	"context"

	"github.com/hivechat/wafleet/internal/convo"
	"github.com/hivechat/wafleet/internal/executor"
	"github.com/hivechat/wafleet/internal/wa"
	"go.uber.org/zap"
)

// replyJob is one inbound message handed to the bot executor.
type replyJob struct {
	numberID string
	meta     *convo.Meta
	message  *wa.Message
}

// dispatcher runs executor invocations off the event path: message
// ingestion enqueues and moves on, a single worker drains the queue. The
// queue is bounded; a full queue drops the job with an error log so backlog
// is visible instead of silently unbounded.
type dispatcher struct {
	exec    executor.Executor
	clients func(numberID string) wa.Client
	logger  *zap.Logger
	jobs    chan replyJob
}

func newDispatcher(exec executor.Executor, clients func(string) wa.Client, queueSize int, logger *zap.Logger) *dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &dispatcher{
		exec:    exec,
		clients: clients,
		logger:  logger,
		jobs:    make(chan replyJob, queueSize),
	}
}

func (d *dispatcher) start(ctx context.Context) {
	go func() {
		for {
			select {
			case job := <-d.jobs:
				d.run(ctx, job)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// enqueue hands a job to the worker without blocking the caller.
func (d *dispatcher) enqueue(job replyJob) {
	select {
	case d.jobs <- job:
	default:
		d.logger.Error("reply queue full, dropping executor invocation",
			zap.String("number_id", job.numberID),
			zap.String("conversation_id", job.meta.ConversationID),
			zap.Int("queue_depth", len(d.jobs)))
	}
}

func (d *dispatcher) run(ctx context.Context, job replyJob) {
	replies, err := d.exec.HandleInbound(ctx, &executor.Request{
		NumberID:       job.numberID,
		ConversationID: job.meta.ConversationID,
		BotVersionID:   job.meta.BotVersionID,
		Message:        job.message,
	})
	if err != nil {
		d.logger.Error("bot executor failed",
			zap.String("number_id", job.numberID),
			zap.String("conversation_id", job.meta.ConversationID),
			zap.Error(err))
		return
	}

	client := d.clients(job.numberID)
	if client == nil {
		d.logger.Warn("client gone before replies could be sent",
			zap.String("number_id", job.numberID))
		return
	}

	for _, reply := range replies {
		if reply.ChatJID == "" {
			continue
		}
		if reply.Kind != executor.ReplyKindText {
			d.logger.Warn("unsupported bot reply kind",
				zap.String("number_id", job.numberID),
				zap.String("conversation_id", job.meta.ConversationID),
				zap.String("kind", reply.Kind))
			continue
		}
		if _, err := client.SendText(ctx, reply.ChatJID, reply.Body); err != nil {
			d.logger.Error("failed to send bot reply",
				zap.String("number_id", job.numberID),
				zap.String("conversation_id", job.meta.ConversationID),
				zap.Error(err))
		}
	}
}
