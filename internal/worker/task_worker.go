package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatcoach/internal/app"
	"chatcoach/internal/repository"
	"chatcoach/internal/task"
)

// ReplyMailbox delivers an awaited task's result back to the request
// that enqueued it.
type ReplyMailbox interface {
	PushTaskReply(ctx context.Context, taskID, text string) error
}

// TaskWorker consumes the task queue with a fixed-size goroutine pool.
// One delivery maps to one task; failures are recorded and Nacked
// without requeue, never retried.
type TaskWorker struct {
	conn        *amqp.Connection
	taskRepo    *repository.TaskRepository
	tasks       *app.TaskService
	replies     ReplyMailbox
	queueName   string
	concurrency int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTaskWorker(
	conn *amqp.Connection,
	taskRepo *repository.TaskRepository,
	tasks *app.TaskService,
	replies ReplyMailbox,
	queueName string,
	concurrency int,
) *TaskWorker {
	if concurrency <= 0 {
		concurrency = 2
	}
	if concurrency > 50 {
		concurrency = 50
	}
	return &TaskWorker{
		conn:        conn,
		taskRepo:    taskRepo,
		tasks:       tasks,
		replies:     replies,
		queueName:   queueName,
		concurrency: concurrency,
	}
}

func (w *TaskWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(w.concurrency, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	jobs := make(chan amqp.Delivery, w.concurrency*2)

	w.wg.Add(w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go func(workerID int) {
			defer w.wg.Done()
			for d := range jobs {
				w.handleDelivery(workerCtx, workerID, d)
			}
		}(i)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		defer close(jobs)

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				jobs <- d
			}
		}
	}()

	log.Printf("task worker started, queue=%s concurrency=%d", w.queueName, w.concurrency)
	return nil
}

func (w *TaskWorker) handleDelivery(ctx context.Context, workerID int, d amqp.Delivery) {
	var env task.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil || env.ID == "" {
		log.Printf("worker=%d decode task envelope failed: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.taskRepo.MarkRunning(env.ID); err != nil {
		log.Printf("worker=%d task=%s mark running failed: %v", workerID, env.ID, err)
	}

	result, err := w.runTask(ctx, env)
	if err != nil {
		log.Printf("worker=%d task=%s kind=%s failed: %v", workerID, env.ID, env.Kind, err)
		if markErr := w.taskRepo.MarkFailed(env.ID, err.Error()); markErr != nil {
			log.Printf("worker=%d task=%s mark failed failed: %v", workerID, env.ID, markErr)
		}
		_ = d.Nack(false, false)
		return
	}

	if err := w.taskRepo.MarkSucceeded(env.ID); err != nil {
		log.Printf("worker=%d task=%s mark succeeded failed: %v", workerID, env.ID, err)
	}

	// Only the result task has a caller blocked on its reply.
	if env.Kind == task.KindGenerateResult {
		if err := w.replies.PushTaskReply(ctx, env.ID, result); err != nil {
			log.Printf("worker=%d task=%s push reply failed: %v", workerID, env.ID, err)
			_ = d.Nack(false, false)
			return
		}
	}

	_ = d.Ack(false)
}

func (w *TaskWorker) runTask(ctx context.Context, env task.Envelope) (string, error) {
	switch env.Kind {
	case task.KindGenerateMessage:
		payload, err := task.DecodeGenerateMessage(env)
		if err != nil {
			return "", err
		}
		return w.tasks.GenerateMessage(ctx, payload, env.CorrelationID)
	case task.KindGenerateFeedback:
		payload, err := task.DecodeGenerateFeedback(env)
		if err != nil {
			return "", err
		}
		return w.tasks.GenerateFeedback(ctx, payload, env.CorrelationID)
	case task.KindGenerateResult:
		payload, err := task.DecodeGenerateResult(env)
		if err != nil {
			return "", err
		}
		return w.tasks.GenerateResult(ctx, payload)
	default:
		return "", fmt.Errorf("%w: %s", task.ErrUnknownKind, env.Kind)
	}
}

func (w *TaskWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
