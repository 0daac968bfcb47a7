// internal/engine/personalize/client.go
package personalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonhttp "notification-engine/internal/common/http"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

// Insights is the optional signal bundle the enrichment collaborator may
// attach to a notification. Any of the fields may be absent.
type Insights struct {
	PreferredChannels []models.Channel `json:"preferredChannels,omitempty"`
	SuggestedTier     models.Tier      `json:"suggestedTier,omitempty"`
	Summary           string           `json:"summary,omitempty"`
}

// Result carries the (possibly enriched) content. Insights is nil when
// enrichment produced no usable signal.
type Result struct {
	Title    string
	Body     string
	Insights *Insights
}

// Enricher is the content-personalization collaborator contract.
type Enricher interface {
	Enrich(ctx context.Context, title, body, category string) Result
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the external enrichment service. The collaborator is a black
// box with a hard timeout; on any failure the original content is returned
// unchanged and the error is never surfaced to the caller.
type Client struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.WithFields(map[string]interface{}{"component": "personalize"}),
	}
}

type enrichRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

type enrichResponse struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Insights *Insights `json:"insights,omitempty"`
}

func (c *Client) Enrich(ctx context.Context, title, body, category string) Result {
	fallback := Result{Title: title, Body: body}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	payload, _ := json.Marshal(enrichRequest{Title: title, Body: body, Category: category})

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.logger.Warn("enrichment timed out, using original content", map[string]interface{}{
					"category": category,
				})
				return fallback
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/ai/enrich", bytes.NewBuffer(payload))
		if err != nil {
			return fallback
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(ctx, req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			c.logger.Warn("enrichment timed out, using original content", map[string]interface{}{
				"category": category,
			})
			return fallback
		}
	}

	if resp == nil {
		c.logger.Warn("enrichment failed, using original content", map[string]interface{}{
			"category": category,
			"error":    lastErr,
		})
		return fallback
	}
	defer resp.Body.Close()

	var enriched enrichResponse
	if err := json.NewDecoder(resp.Body).Decode(&enriched); err != nil {
		c.logger.Warn("enrichment response malformed, using original content", map[string]interface{}{
			"error": err,
		})
		return fallback
	}

	result := Result{Title: enriched.Title, Body: enriched.Body, Insights: sanitizeInsights(enriched.Insights)}
	if result.Title == "" {
		result.Title = title
	}
	if result.Body == "" {
		result.Body = body
	}
	return result
}

// sanitizeInsights drops unknown channels and tiers from a possibly
// malformed insight bundle. A bundle with nothing usable becomes nil.
func sanitizeInsights(in *Insights) *Insights {
	if in == nil {
		return nil
	}

	out := &Insights{Summary: in.Summary}
	for _, c := range in.PreferredChannels {
		switch c {
		case models.ChannelInApp, models.ChannelEmail, models.ChannelPush, models.ChannelSMS:
			out.PreferredChannels = append(out.PreferredChannels, c)
		}
	}
	switch in.SuggestedTier {
	case models.TierImmediate, models.TierBatched, models.TierDelayed:
		out.SuggestedTier = in.SuggestedTier
	}

	if len(out.PreferredChannels) == 0 && out.SuggestedTier == "" && out.Summary == "" {
		return nil
	}
	return out
}

// NoOp is an Enricher that always returns the original content. Used when
// personalization is disabled.
type NoOp struct{}

func (NoOp) Enrich(_ context.Context, title, body, _ string) Result {
	return Result{Title: title, Body: body}
}
