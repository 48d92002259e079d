package task

import (
	"DedupVault/internal/mq"
	"DedupVault/internal/storage"
	"context"
	"encoding/json"
	"errors"
)

// ReclaimMessage asks the worker to remove one physical object whose
// last logical reference is gone. It is only published after the
// owning registry transaction has committed.
type ReclaimMessage struct {
	Fingerprint string `json:"fingerprint"`
	Bucket      string `json:"bucket"`
	ObjectName  string `json:"object_name"`
	Attempt     int    `json:"attempt"`
}

// EnqueueReclaim publishes a reclaim task for a dead content object.
func EnqueueReclaim(ctx context.Context, fingerprint, bucket, objectName string) error {
	msg := ReclaimMessage{
		Fingerprint: fingerprint,
		Bucket:      bucket,
		ObjectName:  objectName,
		Attempt:     0,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	publisher, err := mq.GetPublisher()
	if err != nil {
		return err
	}
	return publisher.PublishTask(ctx, body)
}

// ProcessReclaimTask removes the physical object named by the message.
// Removal of an already-absent object succeeds, so redeliveries after a
// crash are harmless.
func ProcessReclaimTask(ctx context.Context, msg ReclaimMessage) error {
	if storage.Default == nil {
		return errors.New("storage not initialized")
	}
	return storage.Default.RemoveObject(ctx, msg.Bucket, msg.ObjectName)
}
