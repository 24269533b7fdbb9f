package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/hibiken/asynq"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues background work. It is the BlobJanitor of the attachment
// pipeline: orphaned uploads are deleted by the worker, not inline.
type Client struct {
	client   enqueuer
	maxRetry int
}

var _ chatsync.BlobJanitor = (*Client)(nil)

func NewClient(redisURL string) (*Client, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is empty")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt), maxRetry: 5}, nil
}

func (c *Client) DiscardBlob(ctx context.Context, fileURL string) error {
	if fileURL == "" {
		return nil
	}
	task, err := NewDiscardBlobTask(fileURL)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(MaintenanceQueue),
		asynq.MaxRetry(c.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue blob discard: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
