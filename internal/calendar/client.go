package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client wraps the Calendar API for a single calendar, authenticated with a
// service account.
type Client struct {
	svc        *gcal.Service
	calendarID string
}

func NewClient(ctx context.Context, credentialsFile, calendarID string) (*Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := gcal.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	return &Client{svc: svc, calendarID: calendarID}, nil
}

// ListWindow returns every timed occurrence between from and to, recurring
// series expanded, ordered by start time.
func (c *Client) ListWindow(ctx context.Context, from, to time.Time) ([]*gcal.Event, error) {
	var events []*gcal.Event
	call := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(2500)

	if err := call.Pages(ctx, func(page *gcal.Events) error {
		events = append(events, page.Items...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (c *Client) Insert(ctx context.Context, body *gcal.Event) (string, error) {
	ev, err := c.svc.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return ev.Id, nil
}

func (c *Client) Patch(ctx context.Context, eventID string, body *gcal.Event) error {
	if _, err := c.svc.Events.Patch(c.calendarID, eventID, body).Context(ctx).Do(); err != nil {
		return fmt.Errorf("patch event %s: %w", eventID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

// FindBySessionID looks for an event already carrying this session id in its
// private metadata. Push uses it as a duplicate guard before inserting.
func (c *Client) FindBySessionID(ctx context.Context, sessionID int64) (string, error) {
	list, err := c.svc.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("session_id=%d", sessionID)).
		SingleEvents(true).
		MaxResults(1).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search events: %w", err)
	}
	if len(list.Items) == 0 {
		return "", nil
	}
	return list.Items[0].Id, nil
}

// IsNotFound reports whether err is the API's 404, meaning the target event
// no longer exists on the remote side.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
