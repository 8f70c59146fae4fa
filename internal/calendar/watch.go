package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"
)

// WatchChannel describes a registered push notification channel.
type WatchChannel struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	Address    string    `json:"address"`
	Expiration time.Time `json:"expiration"`
}

// Watch registers a push channel so the calendar notifies us about event
// changes instead of us polling for them. The token, when set, comes back
// in the X-Goog-Channel-Token header of every notification.
func (c *Client) Watch(ctx context.Context, address, token string, ttl time.Duration) (*WatchChannel, error) {
	body := &gcal.Channel{
		Id:      uuid.NewString(),
		Type:    "web_hook",
		Address: address,
	}
	if token != "" {
		body.Token = token
	}
	if ttl > 0 {
		body.Expiration = time.Now().Add(ttl).UnixMilli()
	}

	res, err := c.svc.Events.Watch(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("watch calendar: %w", err)
	}

	ch := &WatchChannel{
		ID:         res.Id,
		ResourceID: res.ResourceId,
		Address:    address,
	}
	if res.Expiration > 0 {
		ch.Expiration = time.UnixMilli(res.Expiration)
	}
	return ch, nil
}

// StopChannel tears a push channel down. A channel that already expired on
// the remote side counts as stopped.
func (c *Client) StopChannel(ctx context.Context, channelID, resourceID string) error {
	err := c.svc.Channels.Stop(&gcal.Channel{Id: channelID, ResourceId: resourceID}).Context(ctx).Do()
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("stop channel %s: %w", channelID, err)
	}
	return nil
}
