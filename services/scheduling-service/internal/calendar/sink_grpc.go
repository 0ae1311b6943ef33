//go:build protogen

package calendar

import (
	"context"
	"time"

	"github.com/bookline-dev/bookline/libs/grpcx"
	calendarv1 "github.com/bookline-dev/bookline/protos/gen/calendar/v1"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type grpcSink struct {
	client calendarv1.CalendarSinkClient
}

// NewGRPCSink connects to the calendar collaborator service. An empty addr
// means no collaborator is deployed; callers fall back to NoopSink.
func NewGRPCSink(addr string) (Sink, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcSink{client: calendarv1.NewCalendarSinkClient(conn)}, nil
}

func (s *grpcSink) CreateEvent(ctx context.Context, req EventRequest) (string, error) {
	resp, err := s.client.CreateEvent(ctx, &calendarv1.CreateEventRequest{
		HostUserId: req.HostUserID,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Title:      req.Title,
		StartUtc:   timestamppb.New(req.Start),
		EndUtc:     timestamppb.New(req.End),
		Timezone:   req.Timezone,
	})
	if err != nil {
		return "", err
	}
	return resp.GetEventId(), nil
}

func (s *grpcSink) UpdateEvent(ctx context.Context, hostUserID, eventID string, start, end time.Time, timezone string) error {
	_, err := s.client.UpdateEvent(ctx, &calendarv1.UpdateEventRequest{
		HostUserId: hostUserID,
		EventId:    eventID,
		StartUtc:   timestamppb.New(start),
		EndUtc:     timestamppb.New(end),
		Timezone:   timezone,
	})
	return err
}

func (s *grpcSink) DeleteEvent(ctx context.Context, hostUserID, eventID string) error {
	_, err := s.client.DeleteEvent(ctx, &calendarv1.DeleteEventRequest{
		HostUserId: hostUserID,
		EventId:    eventID,
	})
	return err
}
