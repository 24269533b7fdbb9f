package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeDiscardBlob  = "blob:discard"
	MaintenanceQueue = "maintenance"
)

type DiscardBlobPayload struct {
	URL string `json:"url"`
}

func NewDiscardBlobTask(url string) (*asynq.Task, error) {
	payload, err := json.Marshal(DiscardBlobPayload{URL: url})
	if err != nil {
		return nil, fmt.Errorf("marshal discard payload: %w", err)
	}
	return asynq.NewTask(TypeDiscardBlob, payload), nil
}
