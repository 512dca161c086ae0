package importer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stampbook/stampbook/errors"
	"github.com/stampbook/stampbook/evidence"
	"github.com/stampbook/stampbook/extract"
	"github.com/stampbook/stampbook/logger"
	"github.com/stampbook/stampbook/notify"
	"github.com/stampbook/stampbook/scan"
)

// Sources provides per-user access to the external mail and calendar backends.
type Sources interface {
	IsConnected(ctx context.Context, userID string) (bool, error)
	MailClient(ctx context.Context, userID string) (scan.MailClient, error)
	CalendarClient(ctx context.Context, userID string) (scan.CalendarClient, error)
}

// Options bounds an import run.
type Options struct {
	MaxEmails        int
	MaxEvents        int
	YearsBack        int
	ResultTTL        time.Duration
	ProgressInterval time.Duration

	// UseNER runs the injected entity tagger over calendar text. Email
	// parsing stays rule-based either way.
	UseNER bool
}

// Orchestrator drives one import job through its pipeline: scan emails, scan
// calendar, aggregate evidence, persist ranked candidates.
type Orchestrator struct {
	store    *Store
	sources  Sources
	tagger   extract.EntityTagger
	notifier notify.Notifier
	opts     Options
	log      *zap.SugaredLogger

	// OnUpdate, when set, observes every persisted job snapshot.
	OnUpdate func(*Job)
}

// NewOrchestrator creates an orchestrator. The tagger and notifier may be nil;
// a nil notifier disables push notifications.
func NewOrchestrator(store *Store, sources Sources, tagger extract.EntityTagger, notifier notify.Notifier, opts Options) *Orchestrator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Orchestrator{
		store:    store,
		sources:  sources,
		tagger:   tagger,
		notifier: notifier,
		opts:     opts,
		log:      logger.Named("importer"),
	}
}

// Run executes the job pipeline. The job must be persisted already. State is
// written back throttled during scans and unconditionally on every status
// transition. A failing source is logged and treated as empty; only missing
// connection, storage errors, and cancellation fail the job.
func (o *Orchestrator) Run(ctx context.Context, job *Job) error {
	writer := o.newProgressWriter(job)

	connected, err := o.sources.IsConnected(ctx, job.UserID)
	if err != nil {
		return o.fail(ctx, job, errors.Wrap(err, "failed to check account connection"))
	}
	if !connected {
		return o.fail(ctx, job, errors.ErrNotConnected)
	}

	visited, err := o.store.VisitedCountryCodes(job.UserID)
	if err != nil {
		return o.fail(ctx, job, errors.Wrap(err, "failed to load visited countries"))
	}

	// Email phase
	if err := o.advance(job, StatusScanningEmails, "scanning_emails", writer); err != nil {
		return o.fail(ctx, job, err)
	}
	emails, err := o.scanEmails(ctx, job, writer)
	if err != nil {
		return o.fail(ctx, job, err)
	}

	// Calendar phase
	if err := o.advance(job, StatusScanningCalendar, "scanning_calendar", writer); err != nil {
		return o.fail(ctx, job, err)
	}
	events, err := o.scanCalendar(ctx, job, writer)
	if err != nil {
		return o.fail(ctx, job, err)
	}

	// Aggregation phase
	if err := o.advance(job, StatusProcessing, "aggregating_results", writer); err != nil {
		return o.fail(ctx, job, err)
	}

	candidates := evidence.BuildCandidates(
		evidence.AggregateEmails(emails),
		evidence.AggregateEvents(events),
		visited,
	)

	results := &Results{
		Candidates:    candidates,
		ScannedEmails: job.Progress.EmailsScanned,
		ScannedEvents: job.Progress.EventsScanned,
	}
	if err := o.store.StoreResults(job.UserID, job.ID, results, o.opts.ResultTTL); err != nil {
		return o.fail(ctx, job, errors.Wrap(err, "failed to store results"))
	}

	if err := job.Complete(len(candidates), results.ScannedEmails, results.ScannedEvents); err != nil {
		return o.fail(ctx, job, err)
	}
	job.Progress.CurrentStep = "completed"
	if err := writer.write(job, true); err != nil {
		return err
	}

	o.log.Infow("Import job completed",
		"job_id", job.ID,
		"user_id", job.UserID,
		"candidates", len(candidates),
		"emails_scanned", results.ScannedEmails,
		"events_scanned", results.ScannedEvents)

	o.sendNotification(ctx, job.UserID, notify.ImportCompleted(len(candidates), candidateNames(candidates)))
	return nil
}

// ScanSync runs a bounded scan inline, without job state or persistence.
// Unlike Run, a failing source is a hard error so the caller can surface it.
func (o *Orchestrator) ScanSync(ctx context.Context, userID string, maxEmails, maxEvents int) (*Results, error) {
	connected, err := o.sources.IsConnected(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check account connection")
	}
	if !connected {
		return nil, errors.ErrNotConnected
	}

	visited, err := o.store.VisitedCountryCodes(userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load visited countries")
	}

	mail, err := o.sources.MailClient(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "mail client: %s", err)
	}
	var scannedEmails int
	emails, err := scan.NewEmailScanner(mail, o.log).Scan(ctx, maxEmails, func(scanned, total int) {
		scannedEmails = scanned
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "email scan: %s", err)
	}

	calendar, err := o.sources.CalendarClient(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "calendar client: %s", err)
	}
	var scannedEvents int
	events, err := scan.NewCalendarScanner(calendar, o.calendarTagger(), o.log).Scan(ctx, o.opts.YearsBack, maxEvents, func(year, scanned, total int) {
		scannedEvents = scanned
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "calendar scan: %s", err)
	}

	return &Results{
		Candidates:    evidence.BuildCandidates(evidence.AggregateEmails(emails), evidence.AggregateEvents(events), visited),
		ScannedEmails: scannedEmails,
		ScannedEvents: scannedEvents,
	}, nil
}

func (o *Orchestrator) scanEmails(ctx context.Context, job *Job, writer *progressWriter) ([]scan.EmailResult, error) {
	mail, err := o.sources.MailClient(ctx, job.UserID)
	if err != nil {
		o.log.Warnw("Mail client unavailable, skipping email scan",
			"job_id", job.ID, "error", err)
		return nil, nil
	}

	scanner := scan.NewEmailScanner(mail, o.log)
	emails, err := scanner.Scan(ctx, o.opts.MaxEmails, func(scanned, total int) {
		job.Progress.EmailsScanned = scanned
		job.Progress.EmailsTotal = total
		job.Touch()
		if err := writer.write(job, false); err != nil {
			o.log.Warnw("Failed to persist progress", "job_id", job.ID, "error", err)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, "import canceled")
		}
		o.log.Warnw("Email scan failed, continuing with empty results",
			"job_id", job.ID, "error", err)
		return nil, nil
	}
	return emails, nil
}

func (o *Orchestrator) scanCalendar(ctx context.Context, job *Job, writer *progressWriter) ([]scan.EventResult, error) {
	calendar, err := o.sources.CalendarClient(ctx, job.UserID)
	if err != nil {
		o.log.Warnw("Calendar client unavailable, skipping calendar scan",
			"job_id", job.ID, "error", err)
		return nil, nil
	}

	scanner := scan.NewCalendarScanner(calendar, o.calendarTagger(), o.log)
	events, err := scanner.Scan(ctx, o.opts.YearsBack, o.opts.MaxEvents, func(year, scanned, total int) {
		job.Progress.CalendarYear = year
		job.Progress.EventsScanned = scanned
		job.Progress.EventsTotal = total
		job.Touch()
		if err := writer.write(job, false); err != nil {
			o.log.Warnw("Failed to persist progress", "job_id", job.ID, "error", err)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, "import canceled")
		}
		o.log.Warnw("Calendar scan failed, continuing with empty results",
			"job_id", job.ID, "error", err)
		return nil, nil
	}
	return events, nil
}

// calendarTagger returns the injected tagger when NER is enabled.
func (o *Orchestrator) calendarTagger() extract.EntityTagger {
	if !o.opts.UseNER {
		return nil
	}
	return o.tagger
}

func (o *Orchestrator) advance(job *Job, status Status, step string, writer *progressWriter) error {
	if err := job.Advance(status); err != nil {
		return err
	}
	job.Progress.CurrentStep = step
	return writer.write(job, true)
}

// fail moves the job to failed, persists it, and notifies the user. The
// original cause is returned for the caller's logging.
func (o *Orchestrator) fail(ctx context.Context, job *Job, cause error) error {
	message := cause.Error()
	if err := job.Fail(message); err != nil {
		o.log.Errorw("Failed to mark job failed", "job_id", job.ID, "error", err)
		return cause
	}
	if err := o.store.UpdateJob(job); err != nil {
		o.log.Errorw("Failed to persist failed job", "job_id", job.ID, "error", err)
	}
	if o.OnUpdate != nil {
		o.OnUpdate(job)
	}

	o.log.Warnw("Import job failed",
		"job_id", job.ID,
		"user_id", job.UserID,
		"error", message)

	o.sendNotification(ctx, job.UserID, notify.ImportFailed(message))
	return cause
}

// sendNotification delivers best-effort; a push failure never fails the job.
func (o *Orchestrator) sendNotification(ctx context.Context, userID string, n notify.Notification) {
	if err := o.notifier.Notify(ctx, userID, n); err != nil {
		o.log.Warnw("Failed to send notification", "user_id", userID, "error", err)
	}
}

func candidateNames(candidates []evidence.Candidate) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.CountryName)
	}
	return names
}

// progressWriter throttles job writes during scans. Transitions and final
// states pass force to bypass the limiter.
type progressWriter struct {
	o       *Orchestrator
	limiter *rate.Limiter
}

func (o *Orchestrator) newProgressWriter(job *Job) *progressWriter {
	interval := o.opts.ProgressInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &progressWriter{
		o:       o,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (w *progressWriter) write(job *Job, force bool) error {
	if !force && !w.limiter.Allow() {
		return nil
	}
	if err := w.o.store.UpdateJob(job); err != nil {
		return errors.Wrap(err, "failed to update job")
	}
	if w.o.OnUpdate != nil {
		w.o.OnUpdate(job)
	}
	return nil
}
