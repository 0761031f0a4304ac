package reminder

import (
	"context"
	"errors"
	"log"
	"time"

	"diuacm-web/config"
	"diuacm-web/internal/attendance"
	"diuacm-web/internal/backend"
	"diuacm-web/internal/notification"
	"diuacm-web/internal/store"
)

// EventSource reads event details from the backend.
type EventSource interface {
	GetEvent(ctx context.Context, id int64) (*backend.EventDetail, error)
}

// Dispatcher queues reminder jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, job notification.Job) error
}

// Service re-evaluates attendance windows on a fixed tick and announces each
// window that opens to the event's push subscribers, once.
type Service struct {
	cfg        *config.ReminderConfig
	store      store.Store
	events     EventSource
	dispatcher Dispatcher
	now        func() time.Time
}

// NewService creates a reminder service.
func NewService(cfg *config.ReminderConfig, st store.Store, events EventSource, dispatcher Dispatcher) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		events:     events,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Run checks once immediately, then every configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Reminders are disabled. Not starting.")
		return
	}
	log.Println("Starting reminder service...")

	s.CheckOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reminder service shutting down.")
			return
		case <-timer.C:
			s.CheckOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// CheckOnce evaluates every subscribed event and returns how many reminders
// were dispatched.
func (s *Service) CheckOnce(ctx context.Context) int {
	ids, err := s.store.SubscribedEventIDs(ctx)
	if err != nil {
		log.Printf("Error listing subscribed events: %v", err)
		return 0
	}

	now := s.now()
	dispatched := 0
	for _, id := range ids {
		event, err := s.events.GetEvent(ctx, id)
		if errors.Is(err, backend.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("Error fetching event %d: %v", id, err)
			continue
		}
		if !event.OpenForAttendance {
			continue
		}
		if attendance.Classify(now, event.StartingAt, event.EndingAt) != attendance.WindowOpen {
			continue
		}

		fresh, err := s.store.MarkReminded(ctx, event.ID, event.Title, now)
		if err != nil {
			log.Printf("Error recording reminder for event %d: %v", id, err)
			continue
		}
		if !fresh {
			continue
		}

		if err := s.dispatcher.Dispatch(ctx, notification.Job{EventID: event.ID, Title: event.Title}); err != nil {
			log.Printf("Reminder for event %d was not dispatched: %v", id, err)
			return dispatched
		}
		dispatched++
	}
	if dispatched > 0 {
		log.Printf("Dispatched %d attendance reminders", dispatched)
	}
	return dispatched
}
