// internal/audit/indexer.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// Document is the audit record indexed for every terminal delivery outcome.
type Document struct {
	NotificationID string          `json:"notificationId"`
	RecipientID    string          `json:"recipientId"`
	Category       string          `json:"category"`
	Priority       models.Priority `json:"priority"`
	Status         models.Status   `json:"status"`
	Channels       []models.Channel `json:"channels,omitempty"`
	RecordedAt     time.Time       `json:"recordedAt"`
}

// Indexer writes terminal outcomes to Elasticsearch. Indexing is fire and
// forget: a failed write is logged and never affects the dispatch path.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log,
	}
}

// Record indexes the outcome asynchronously.
func (i *Indexer) Record(_ context.Context, n models.Notification, status models.Status) {
	doc := Document{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Category:       n.Category,
		Priority:       n.Priority,
		Status:         status,
		Channels:       n.Channels,
		RecordedAt:     time.Now().UTC(),
	}
	go i.write(doc)
}

func (i *Indexer) write(doc Document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		i.logger.Error("failed to marshal audit document", map[string]interface{}{
			"notification_id": doc.NotificationID,
			"error":           err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(payload),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(doc.NotificationID),
	)
	if err != nil {
		i.logger.Warn("audit index write failed", map[string]interface{}{
			"notification_id": doc.NotificationID,
			"error":           err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("audit index write rejected", map[string]interface{}{
			"notification_id": doc.NotificationID,
			"status":          res.Status(),
		})
	}
}
