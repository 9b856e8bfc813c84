// Package notify tells a downstream consumer that the state mover ran.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/functions"

	"etl-state-mover-oci-serverless/pkg/queue"
)

// Source is the source tag of every event.
const Source = "etl-state-mover"

// Event describes the invocation that produced it.
type Event struct {
	Source          string `json:"source"`
	FunctionName    string `json:"functionName"`
	FunctionVersion string `json:"functionVersion"`
	FunctionID      string `json:"functionId"`
	RequestID       string `json:"requestId"`
	Timestamp       string `json:"timestamp"`
}

// NewEvent stamps an event for the calling function.
func NewEvent(fnName, fnVersion, fnID, requestID string, now time.Time) Event {
	return Event{
		Source:          Source,
		FunctionName:    fnName,
		FunctionVersion: fnVersion,
		FunctionID:      fnID,
		RequestID:       requestID,
		Timestamp:       now.UTC().Format(time.RFC3339),
	}
}

// Notifier delivers an event without waiting for it to be processed.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// InvokeAPI is the subset of functions.FunctionsInvokeClient used here.
type InvokeAPI interface {
	InvokeFunction(ctx context.Context, request functions.InvokeFunctionRequest) (functions.InvokeFunctionResponse, error)
}

// FunctionNotifier fires a detached invocation of another function.
type FunctionNotifier struct {
	client     InvokeAPI
	functionID string
}

// NewFunctionNotifier targets the function with OCID functionID.
func NewFunctionNotifier(client InvokeAPI, functionID string) *FunctionNotifier {
	return &FunctionNotifier{client: client, functionID: functionID}
}

func (n *FunctionNotifier) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	resp, err := n.client.InvokeFunction(ctx, functions.InvokeFunctionRequest{
		FunctionId:         common.String(n.functionID),
		InvokeFunctionBody: io.NopCloser(bytes.NewReader(body)),
		FnInvokeType:       functions.InvokeFunctionFnInvokeTypeDetached,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", n.functionID, err)
	}
	if resp.Content != nil {
		resp.Content.Close()
	}
	return nil
}

// QueueNotifier publishes the event as a JSON message.
type QueueNotifier struct {
	pub queue.Publisher
}

// NewQueueNotifier wraps an OCI Queue or RabbitMQ publisher.
func NewQueueNotifier(pub queue.Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.pub.Publish(ctx, body); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
