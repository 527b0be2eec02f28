// Package dispatch implements the campaign dispatch engine: audience
// resolution, per-channel consent and quiet-hour gates, the 24h dedup
// window, and concurrent sending.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"coachflow_backend/internal/campaigns/repository"
	"coachflow_backend/internal/events"
	prospectrepo "coachflow_backend/internal/prospects/repository"
	"coachflow_backend/platform/apperr"
	"coachflow_backend/platform/config"
	"coachflow_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// dedupWindow suppresses a second send of the same campaign to the same
// prospect on the same channel.
const dedupWindow = 24 * time.Hour

// Store is the campaigns persistence surface the dispatcher needs.
// Satisfied by campaigns/repository.Repository.
type Store interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (repository.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]repository.Campaign, error)
	LatestMessage(ctx context.Context, campaignID uuid.UUID) (repository.Message, error)
	GetAudience(ctx context.Context, id uuid.UUID) (repository.Audience, error)
	CreateRun(ctx context.Context, campaignID uuid.UUID, audienceID *uuid.UUID) (repository.Run, error)
	FinishRun(ctx context.Context, runID uuid.UUID, status string, total, sent, errCount int) error
	LastRunAt(ctx context.Context, campaignID uuid.UUID) (*time.Time, error)
	InsertDelivery(ctx context.Context, d repository.Delivery) error
	HasRecentDelivery(ctx context.Context, campaignID, prospectID uuid.UUID, channel string, since time.Time) (bool, error)
	GetPreference(ctx context.Context, prospectID uuid.UUID) (repository.Preference, error)
}

// ProspectDirectory resolves audiences to concrete prospects.
// Satisfied by prospects/repository.Repository.
type ProspectDirectory interface {
	List(ctx context.Context, params prospectrepo.ListParams) ([]prospectrepo.Prospect, error)
}

// Sender delivers one rendered message to a prospect over one channel.
type Sender interface {
	Send(ctx context.Context, p prospectrepo.Prospect, body string) error
}

// RunSummary reports the outcome of one campaign run.
type RunSummary struct {
	RunID     uuid.UUID
	Processed int
	Sent      int
	Skipped   int
	Errors    int
}

// Dispatcher executes campaign runs.
type Dispatcher struct {
	store     Store
	prospects ProspectDirectory
	senders   map[string]Sender
	cfg       config.CampaignConfig
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a campaign dispatcher. senders maps channel names to their
// transport implementations; channels without a sender are skipped.
func New(store Store, prospects ProspectDirectory, senders map[string]Sender, cfg config.CampaignConfig, bus events.Bus, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		prospects: prospects,
		senders:   senders,
		cfg:       cfg,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// StartRun executes one campaign run synchronously and returns its summary.
// audienceID nil means the whole prospect base. limit caps how many prospects
// the run touches; zero or negative falls back to the configured run limit.
func (d *Dispatcher) StartRun(ctx context.Context, campaignID uuid.UUID, audienceID *uuid.UUID, limit int) (RunSummary, error) {
	campaign, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return RunSummary{}, apperr.NotFound("campaign not found")
		}
		return RunSummary{}, err
	}
	if campaign.Status == repository.StatusCancelled {
		return RunSummary{}, apperr.Conflict("campaign is cancelled")
	}
	if len(campaign.Channels) == 0 {
		return RunSummary{}, apperr.Validation("campaign has no channels")
	}

	message, err := d.store.LatestMessage(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return RunSummary{}, apperr.Validation("campaign has no message template")
		}
		return RunSummary{}, err
	}

	if limit <= 0 {
		limit = d.cfg.GetCampaignRunLimit()
	}
	params := prospectrepo.ListParams{Limit: limit}
	if audienceID != nil {
		audience, err := d.store.GetAudience(ctx, *audienceID)
		if err != nil {
			if errors.Is(err, repository.ErrAudienceNotFound) {
				return RunSummary{}, apperr.NotFound("audience not found")
			}
			return RunSummary{}, err
		}
		params.Status = audience.StatusFilter
		params.NeedChatHandle = audience.RequireWhatsApp
		params.NeedEmail = audience.RequireEmail
		params.NeedPhone = audience.RequirePhone
	}

	prospects, err := d.prospects.List(ctx, params)
	if err != nil {
		return RunSummary{}, err
	}

	if err := d.store.UpdateStatus(ctx, campaignID, repository.StatusRunning); err != nil {
		return RunSummary{}, err
	}
	run, err := d.store.CreateRun(ctx, campaignID, audienceID)
	if err != nil {
		return RunSummary{}, err
	}

	summary := d.processRun(ctx, campaign, message, run.ID, prospects)

	runStatus := repository.RunCompleted
	if summary.Errors > 0 && summary.Sent == 0 {
		runStatus = repository.RunFailed
	}
	if err := d.store.FinishRun(ctx, run.ID, runStatus, summary.Processed, summary.Sent, summary.Errors); err != nil {
		return summary, err
	}

	finalStatus := repository.StatusCompleted
	if campaign.ScheduleAt != nil {
		finalStatus = repository.StatusScheduled
	}
	if err := d.store.UpdateStatus(ctx, campaignID, finalStatus); err != nil {
		return summary, err
	}

	d.log.CampaignRun(run.ID.String(), summary.Processed, summary.Sent, summary.Errors)
	if d.bus != nil {
		d.bus.Publish(ctx, events.CampaignRunFinished{
			BaseEvent:  events.NewBaseEvent(),
			RunID:      run.ID,
			CampaignID: campaignID,
			Processed:  summary.Processed,
			Sent:       summary.Sent,
			Errors:     summary.Errors,
		})
	}

	return summary, nil
}

// processRun fans prospects out to a bounded worker group and applies the
// per-channel gates for each.
func (d *Dispatcher) processRun(ctx context.Context, campaign repository.Campaign, message repository.Message, runID uuid.UUID, prospects []prospectrepo.Prospect) RunSummary {
	summary := RunSummary{RunID: runID, Processed: len(prospects)}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	concurrency := d.cfg.GetCampaignSendConcurrency()
	if concurrency <= 0 {
		concurrency = 1
	}
	group.SetLimit(concurrency)

	for _, prospect := range prospects {
		group.Go(func() error {
			sent, skipped, failed := d.dispatchProspect(groupCtx, campaign, message, runID, prospect)
			// Counters are per prospect, not per channel. A prospect counts as
			// sent when at least one channel went out; the delivery ledger keeps
			// the per-channel detail.
			mu.Lock()
			switch {
			case sent > 0:
				summary.Sent++
			case failed > 0:
				summary.Errors++
			case skipped > 0:
				summary.Skipped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return summary
}

// dispatchProspect sends the campaign to one prospect across its channels.
// Each channel passes through the gates in order: sender availability,
// consent, contact presence, quiet hours, dedup window.
func (d *Dispatcher) dispatchProspect(ctx context.Context, campaign repository.Campaign, message repository.Message, runID uuid.UUID, prospect prospectrepo.Prospect) (sent, skipped, failed int) {
	pref, err := d.store.GetPreference(ctx, prospect.ID)
	if err != nil {
		d.log.DatabaseError("campaigns.get_preference", err)
		return 0, 0, len(campaign.Channels)
	}

	for _, channel := range campaign.Channels {
		sender, ok := d.senders[channel]
		if !ok {
			skipped++
			continue
		}

		// Failed gate checks write no Delivery row; only real send attempts
		// produce a sent or failed record.
		if !d.channelAllowed(channel, prospect, pref) {
			skipped++
			continue
		}

		if pref.QuietStart != nil && pref.QuietEnd != nil &&
			InQuietHours(d.now().Hour(), *pref.QuietStart, *pref.QuietEnd) {
			skipped++
			continue
		}

		recent, err := d.store.HasRecentDelivery(ctx, campaign.ID, prospect.ID, channel, d.now().Add(-dedupWindow))
		if err != nil {
			d.log.DatabaseError("campaigns.dedup_check", err)
			failed++
			continue
		}
		if recent {
			skipped++
			continue
		}

		body := RenderTemplate(message.Body, prospect, campaign.Params)
		if err := sender.Send(ctx, prospect, body); err != nil {
			d.log.Error("campaign send failed",
				"campaignId", campaign.ID, "prospectId", prospect.ID, "channel", channel, "error", err)
			d.recordDelivery(ctx, runID, campaign.ID, prospect.ID, channel, repository.DeliveryFailed)
			failed++
			continue
		}

		d.recordDelivery(ctx, runID, campaign.ID, prospect.ID, channel, repository.DeliverySent)
		sent++
	}
	return sent, skipped, failed
}

func (d *Dispatcher) channelAllowed(channel string, prospect prospectrepo.Prospect, pref repository.Preference) bool {
	switch channel {
	case repository.ChannelWhatsApp:
		return pref.AllowWhatsApp && prospect.ChatHandle != ""
	case repository.ChannelEmail:
		return pref.AllowEmail && prospect.Email != ""
	default:
		return false
	}
}

func (d *Dispatcher) recordDelivery(ctx context.Context, runID, campaignID, prospectID uuid.UUID, channel, status string) {
	err := d.store.InsertDelivery(ctx, repository.Delivery{
		RunID:      runID,
		CampaignID: campaignID,
		ProspectID: prospectID,
		Channel:    channel,
		Status:     status,
	})
	if err != nil {
		d.log.DatabaseError("campaigns.insert_delivery", err)
	}
}

// ProcessScheduled runs due scheduled campaigns. A campaign that already ran
// within the dedup window is left for a later sweep, which keeps a recurring
// schedule from hammering the same audience twice a day. limitPerRun caps the
// prospect count of each started run and maxRuns caps how many campaigns one
// sweep starts; zero or negative values fall back to the configured defaults.
func (d *Dispatcher) ProcessScheduled(ctx context.Context, limitPerRun, maxRuns int) (int, error) {
	if maxRuns <= 0 {
		maxRuns = d.cfg.GetCampaignMaxRunsPerSweep()
	}
	due, err := d.store.ListDueScheduled(ctx, d.now(), maxRuns)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, campaign := range due {
		lastRun, err := d.store.LastRunAt(ctx, campaign.ID)
		if err != nil {
			d.log.DatabaseError("campaigns.last_run_at", err)
			continue
		}
		if lastRun != nil && d.now().Sub(*lastRun) < dedupWindow {
			continue
		}

		if _, err := d.StartRun(ctx, campaign.ID, nil, limitPerRun); err != nil {
			d.log.Error("scheduled campaign run failed", "campaignId", campaign.ID, "error", err)
			continue
		}
		started++
	}
	return started, nil
}
