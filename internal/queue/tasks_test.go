package queue

import (
	"encoding/json"
	"testing"
)

func TestNewStockLevelAlertTask(t *testing.T) {
	task, err := NewStockLevelAlertTask(StockLevelAlertPayload{ProductID: 3, MovementID: 11, Quantity: 2, Threshold: 5, Status: "low_stock"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskStockLevelAlert {
		t.Fatalf("task type want %s got %s", TaskStockLevelAlert, task.Type())
	}
	var payload StockLevelAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if payload.ProductID != 3 || payload.Status != "low_stock" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDisabledClientSkipsEnqueue(t *testing.T) {
	client, err := NewClient(nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	if err := client.EnqueueStockLevelAlert(StockLevelAlertPayload{ProductID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be noop: %v", err)
	}
	if err := client.EnqueueTokenRequestReviewed(TokenRequestReviewedPayload{RequestID: 1}); err != nil {
		t.Fatalf("disabled enqueue should be noop: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}
