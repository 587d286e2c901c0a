package services

// EventPublisher pushes pipeline progress to realtime subscribers.
type EventPublisher interface {
	PublishOrderEvent(orderID uint, event string, payload map[string]any) error
	PublishUserEvent(userID uint, event string, payload map[string]any) error
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderEvent(uint, string, map[string]any) error { return nil }
func (nopPublisher) PublishUserEvent(uint, string, map[string]any) error  { return nil }

const (
	eventOrderQueued    = "order_queued"
	eventVideoSucceeded = "video_succeeded"
	eventVideoFailed    = "video_failed"
	eventOrderFinished  = "order_finished"
)
