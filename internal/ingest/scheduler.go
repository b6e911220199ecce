package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lox/sunburntimer/internal/log"
	"github.com/lox/sunburntimer/internal/metrics"
	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/store"
)

type Scheduler struct {
	store       *store.Store
	forecast    *ForecastClient
	ftp         *FTPSource
	ftpLocation int64
	interval    time.Duration
	retention   time.Duration
}

func NewScheduler(store *store.Store, forecast *ForecastClient, interval, retention time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	return &Scheduler{
		store:     store,
		forecast:  forecast,
		interval:  interval,
		retention: retention,
	}
}

// SetFTPSource configures the scheduler to also pull a CSV series into locationID.
func (s *Scheduler) SetFTPSource(src *FTPSource, locationID int64) {
	s.ftp = src
	s.ftpLocation = locationID
}

func (s *Scheduler) Run(ctx context.Context) {
	s.refreshAll(ctx)
	s.ingestFTP(ctx)
	s.prune()

	refreshTicker := time.NewTicker(s.interval)
	pruneTicker := time.NewTicker(6 * time.Hour)
	defer refreshTicker.Stop()
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("scheduler: shutting down")
			return
		case <-refreshTicker.C:
			s.refreshAll(ctx)
			s.ingestFTP(ctx)
		case <-pruneTicker.C:
			s.prune()
		}
	}
}

// IngestOnce refreshes every saved location and the FTP source, returning the first error.
func (s *Scheduler) IngestOnce(ctx context.Context) error {
	locations, err := s.store.ListLocations()
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}
	var errs []error
	for _, loc := range locations {
		if _, err := s.RefreshLocation(ctx, loc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", loc.Name, err))
		}
	}
	if err := s.ingestFTP(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Scheduler) refreshAll(ctx context.Context) {
	locations, err := s.store.ListLocations()
	if err != nil {
		log.Errorf("scheduler: list locations: %v", err)
		return
	}
	for _, loc := range locations {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RefreshLocation(ctx, loc); err != nil {
			log.Errorf("scheduler: refresh %s: %v", loc.Name, err)
		}
	}
}

// RefreshLocation fetches and stores a fresh forecast for loc, auditing the call.
func (s *Scheduler) RefreshLocation(ctx context.Context, loc models.Location) (*models.Forecast, error) {
	if s.forecast == nil {
		return nil, errors.New("no forecast client configured")
	}

	run, _ := s.store.StartIngestRun(SourceOpenMeteo, endpointForecast, &loc.ID)
	forecast, rawBody, fetchResult, err := s.forecast.Fetch(ctx, loc.Latitude, loc.Longitude)

	stored := 0
	if err == nil {
		if flags := ValidateForecast(forecast); len(flags) > 0 {
			log.Warnw("scheduler: forecast quality flags", "location", loc.Name, "flags", flags)
		}
		stored, err = s.store.SaveForecast(loc.ID, *forecast)
		if err == nil {
			metrics.ForecastsIngested.WithLabelValues(SourceOpenMeteo).Add(float64(stored))
			log.Infow("scheduler: stored forecast", "location", loc.Name, "hours", stored, "timezone", forecast.Timezone)
		}
	}

	s.completeRun(run, fetchResult, stored, err)
	if len(rawBody) > 0 && run != nil {
		if _, perr := s.store.StoreRawPayload(&run.ID, SourceOpenMeteo, endpointForecast, &loc.ID, rawBody); perr != nil {
			log.Warnf("scheduler: store raw payload: %v", perr)
		}
	}
	if err != nil {
		return nil, err
	}
	return forecast, nil
}

// ReplayLatest re-parses the newest stored Open-Meteo response for loc into the cache
// without touching the network. The forecast keeps the time the payload was fetched.
func (s *Scheduler) ReplayLatest(loc models.Location) (*models.Forecast, error) {
	payload, err := s.store.LatestRawPayload(SourceOpenMeteo, loc.ID)
	if err != nil {
		return nil, fmt.Errorf("load raw payload: %w", err)
	}
	if payload == nil {
		return nil, fmt.Errorf("no stored %s payload for %s", SourceOpenMeteo, loc.Name)
	}

	forecast, err := parseForecast(payload.Body, nil)
	if err != nil {
		return nil, fmt.Errorf("replay payload %d: %w", payload.ID, err)
	}
	forecast.FetchedAt = payload.FetchedAt

	stored, err := s.store.SaveForecast(loc.ID, *forecast)
	if err != nil {
		return nil, err
	}
	log.Infow("scheduler: replayed forecast", "location", loc.Name, "payload", payload.ID, "hours", stored)
	return forecast, nil
}

func (s *Scheduler) ingestFTP(ctx context.Context) error {
	if s.ftp == nil {
		return nil
	}

	loc, err := s.store.GetLocation(s.ftpLocation)
	if err != nil {
		return fmt.Errorf("ftp location: %w", err)
	}
	if loc == nil {
		return fmt.Errorf("ftp location %d not found", s.ftpLocation)
	}

	run, _ := s.store.StartIngestRun(SourceFTP, s.ftp.Path(), &loc.ID)
	hourly, rawBody, fetchResult, err := s.ftp.Fetch(ctx)

	stored := 0
	if err == nil {
		stored, err = s.store.SaveForecast(loc.ID, models.Forecast{
			Source:    SourceFTP,
			FetchedAt: time.Now().UTC(),
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Timezone:  loc.Timezone,
			Hourly:    hourly,
		})
		if err == nil {
			metrics.ForecastsIngested.WithLabelValues(SourceFTP).Add(float64(stored))
			log.Infof("scheduler: stored %d FTP UV hours for %s", stored, loc.Name)
		}
	}

	s.completeRun(run, fetchResult, stored, err)
	if len(rawBody) > 0 && run != nil {
		if _, perr := s.store.StoreRawPayload(&run.ID, SourceFTP, s.ftp.Path(), &loc.ID, rawBody); perr != nil {
			log.Warnf("scheduler: store FTP raw payload: %v", perr)
		}
	}
	if err != nil {
		log.Errorf("scheduler: ftp ingest: %v", err)
	}
	return err
}

func (s *Scheduler) completeRun(run *store.IngestRun, fetchResult *FetchResult, stored int, err error) {
	if run == nil {
		return
	}
	run.Success = err == nil
	if fetchResult != nil {
		run.HTTPStatus = sql.NullInt64{Int64: int64(fetchResult.HTTPStatus), Valid: fetchResult.HTTPStatus > 0}
		run.ResponseSizeBytes = sql.NullInt64{Int64: int64(fetchResult.ResponseSize), Valid: fetchResult.ResponseSize > 0}
		run.RecordsParsed = sql.NullInt64{Int64: int64(fetchResult.RecordCount), Valid: true}
		if fetchResult.ParseErrors > 0 {
			run.ParseErrors = sql.NullInt64{Int64: int64(fetchResult.ParseErrors), Valid: true}
			run.ErrorMessage = sql.NullString{String: fetchResult.ParseError, Valid: true}
			log.Warnf("scheduler: %s parse errors: %s", run.Source, fetchResult.ParseError)
		}
	}
	run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: err == nil}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if cerr := s.store.CompleteIngestRun(run); cerr != nil {
		log.Warnf("scheduler: complete ingest run: %v", cerr)
	}
}

func (s *Scheduler) prune() {
	cutoff := time.Now().Add(-s.retention)
	n, err := s.store.PruneForecasts(cutoff)
	if err != nil {
		log.Errorf("scheduler: prune forecasts: %v", err)
		return
	}
	if _, err := s.store.PruneRawPayloads(cutoff); err != nil {
		log.Errorf("scheduler: prune raw payloads: %v", err)
	}
	if n > 0 {
		log.Infof("scheduler: pruned %d hourly rows before %s", n, cutoff.Format(time.RFC3339))
	}
}
