package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AsyncDispatcher queues events in memory and delivers them from a fixed
// pool of workers. A full queue drops the event.
type AsyncDispatcher struct {
	sender   Sender
	renderer *Renderer
	log      zerolog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	Location    *time.Location
}

func NewAsyncDispatcher(sender Sender, logger zerolog.Logger, opts DispatcherOptions) *AsyncDispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}

	d := &AsyncDispatcher{
		sender:   sender,
		renderer: NewRenderer(opts.Location),
		log:      logger.With().Str("component", "notify").Logger(),
		timeout:  opts.SendTimeout,
		queue:    make(chan Event, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn().Str("kind", string(ev.Kind)).Str("appointment_id", ev.AppointmentID.String()).
			Msg("dispatcher closed, notification dropped")
		return
	}

	select {
	case d.queue <- ev:
	default:
		d.log.Warn().Str("kind", string(ev.Kind)).Str("appointment_id", ev.AppointmentID.String()).
			Msg("notification queue full, dropped")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *AsyncDispatcher) deliver(ev Event) {
	msgs, err := d.renderer.Render(ev)
	if err != nil {
		d.log.Error().Err(err).Str("kind", string(ev.Kind)).Str("appointment_id", ev.AppointmentID.String()).
			Msg("render notification")
		return
	}

	for _, m := range msgs {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sender.Send(ctx, m)
		cancel()
		if err != nil {
			d.log.Error().Err(err).
				Str("kind", string(ev.Kind)).
				Str("appointment_id", ev.AppointmentID.String()).
				Strs("to", m.To).
				Msg("send notification")
		}
	}
}
