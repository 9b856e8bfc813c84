// Package queue publishes raw message bodies to OCI Queue or RabbitMQ.
package queue

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/queue"
)

// Publisher sends one message body.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
	Close() error
}

// MessagesAPI is the subset of queue.QueueClient used by OCIQueueClient.
type MessagesAPI interface {
	PutMessages(ctx context.Context, request queue.PutMessagesRequest) (queue.PutMessagesResponse, error)
}

// OCIQueueClient holds the client and queue ID
type OCIQueueClient struct {
	client  MessagesAPI
	queueID string
}

// NewOCIQueueClient creates a client for the queue's messages endpoint.
func NewOCIQueueClient(provider common.ConfigurationProvider, queueID, endpoint string) (*OCIQueueClient, error) {
	client, err := queue.NewQueueClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		client.Host = endpoint
	}
	return NewOCIQueuePublisher(client, queueID), nil
}

// NewOCIQueuePublisher wraps an existing client.
func NewOCIQueuePublisher(client MessagesAPI, queueID string) *OCIQueueClient {
	return &OCIQueueClient{client: client, queueID: queueID}
}

// Publish puts body on the queue as a single message.
func (c *OCIQueueClient) Publish(ctx context.Context, body []byte) error {
	req := queue.PutMessagesRequest{
		QueueId: &c.queueID,
		PutMessagesDetails: queue.PutMessagesDetails{
			Messages: []queue.PutMessagesDetailsEntry{
				{
					Content: common.String(string(body)),
				},
			},
		},
	}

	_, err := c.client.PutMessages(ctx, req)
	return err
}

func (c *OCIQueueClient) Close() error { return nil }
