package supabase

import (
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

// RealtimeClient mirrors pipeline events into a table that Supabase Realtime
// broadcasts to subscribed clients.
type RealtimeClient struct {
	client *supabase.Client
	table  string
}

func NewRealtimeClient(client *supabase.Client, table string) *RealtimeClient {
	return &RealtimeClient{
		client: client,
		table:  table,
	}
}

type eventRow struct {
	Channel   string         `json:"channel"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func (r *RealtimeClient) PublishEvent(channel, event string, payload map[string]any) error {
	row := eventRow{
		Channel:   channel,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if _, _, err := r.client.From(r.table).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to publish %s on %s: %w", event, channel, err)
	}
	return nil
}

func (r *RealtimeClient) PublishOrderEvent(orderID uint, event string, payload map[string]any) error {
	return r.PublishEvent(OrderChannel(orderID), event, payload)
}

func (r *RealtimeClient) PublishUserEvent(userID uint, event string, payload map[string]any) error {
	return r.PublishEvent(UserChannel(userID), event, payload)
}

func OrderChannel(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

func UserChannel(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// Event payloads
func OrderQueuedPayload(orderID uint, imageCount int) map[string]any {
	return map[string]any{
		"order_id":    orderID,
		"status":      "submitted",
		"image_count": imageCount,
	}
}

func VideoSucceededPayload(orderID, videoID uint, videoURL string) map[string]any {
	return map[string]any{
		"order_id":  orderID,
		"video_id":  videoID,
		"status":    "succeeded",
		"video_url": videoURL,
	}
}

func VideoFailedPayload(orderID, videoID uint, reason string) map[string]any {
	return map[string]any{
		"order_id": orderID,
		"video_id": videoID,
		"status":   "failed",
		"error":    reason,
	}
}

func OrderFinishedPayload(orderID uint, status string) map[string]any {
	return map[string]any{
		"order_id": orderID,
		"status":   status,
	}
}
