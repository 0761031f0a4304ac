package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"diuacm-web/internal/metrics"
	"diuacm-web/internal/model"
	"diuacm-web/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends notifications with the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job announces that an event's attendance window has opened.
type Job struct {
	EventID int64
	Title   string
}

// Payload is the JSON body the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// NewPayload builds the reminder shown for job.
func NewPayload(job Job) Payload {
	return Payload{
		Title: "DIU ACM",
		Body:  fmt.Sprintf("Attendance is open for %s", job.Title),
		URL:   fmt.Sprintf("/events/%d", job.EventID),
	}
}

// WorkerPool fans reminder jobs out to push subscribers.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, st store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d processing reminder for event %d", id, job.EventID)
			wp.sendReminders(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues job, giving up when ctx is done.
func (wp *WorkerPool) Dispatch(ctx context.Context, job Job) error {
	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) sendReminders(ctx context.Context, job Job) {
	subscriptions, err := wp.store.SubscriptionsForEvent(ctx, job.EventID)
	if err != nil {
		log.Printf("Error fetching subscriptions for event %d: %v", job.EventID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewPayload(job))
	if err != nil {
		log.Printf("Error encoding reminder for event %d: %v", job.EventID, err)
		return
	}

	log.Printf("Sending %d reminders for event %d", len(subscriptions), job.EventID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.RemindersSent.WithLabelValues("error").Inc()
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusGone, http.StatusNotFound:
		metrics.RemindersSent.WithLabelValues("expired").Inc()
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	default:
		if resp.StatusCode >= 400 {
			metrics.RemindersSent.WithLabelValues("error").Inc()
			log.Printf("Push service rejected notification to %s: %s", sub.Endpoint, resp.Status)
			return
		}
		metrics.RemindersSent.WithLabelValues("sent").Inc()
	}
}
