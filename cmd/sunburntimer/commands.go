package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lox/sunburntimer/internal/api"
	"github.com/lox/sunburntimer/internal/burn"
	"github.com/lox/sunburntimer/internal/config"
	"github.com/lox/sunburntimer/internal/exposure"
	"github.com/lox/sunburntimer/internal/imagegen"
	"github.com/lox/sunburntimer/internal/ingest"
	"github.com/lox/sunburntimer/internal/log"
	"github.com/lox/sunburntimer/internal/models"
	"github.com/lox/sunburntimer/internal/narrative"
	"github.com/lox/sunburntimer/internal/store"
	"github.com/lox/sunburntimer/internal/tz"
)

// newScheduler builds the forecast scheduler, registering the FTP drop as a location when configured.
func newScheduler(cfg *config.Config, st *store.Store) (*ingest.Scheduler, error) {
	forecast := ingest.NewForecastClient(cfg.Forecast.BaseURL, cfg.Forecast.Days)
	scheduler := ingest.NewScheduler(st, forecast, cfg.Schedule.RefreshInterval, cfg.Schedule.Retention)

	if cfg.FTP.Address != "" {
		id, err := st.UpsertLocation(models.Location{
			Name:      cfg.FTP.Name,
			Latitude:  cfg.FTP.Latitude,
			Longitude: cfg.FTP.Longitude,
			Timezone:  cfg.FTP.Timezone,
		})
		if err != nil {
			return nil, fmt.Errorf("register ftp location: %w", err)
		}
		src := ingest.NewFTPSource(cfg.FTP.Address, cfg.FTP.User, cfg.FTP.Password, cfg.FTP.Path, cfg.FTP.Timeout)
		scheduler.SetFTPSource(src, id)
		log.Infof("ftp source %s%s feeds location %d", cfg.FTP.Address, cfg.FTP.Path, id)
	}
	return scheduler, nil
}

func newService(cfg *config.Config, st *store.Store, scheduler *ingest.Scheduler) *exposure.Service {
	svc := exposure.NewService(st, scheduler, cfg.BurnOptions(), cfg.Forecast.StaleAfter)
	if cfg.Narrative.Enabled {
		writer, err := narrative.NewWriter(cfg.Narrative.APIKey, cfg.Narrative.BaseURL, cfg.Narrative.Model)
		if err != nil {
			log.Warnf("narrative disabled: %v", err)
		} else {
			svc.SetNarrator(writer)
		}
	}
	return svc
}

type ServeCmd struct {
	Addr   string `help:"Listen address (overrides config)."`
	NoPoll bool   `help:"Disable scheduled forecast refreshes."`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if c.Addr != "" {
		cfg.HTTP.Address = c.Addr
	}

	scheduler, err := newScheduler(cfg, a.store)
	if err != nil {
		return err
	}
	svc := newService(cfg, a.store, scheduler)

	server := api.NewServer(a.store, svc, cfg.HTTP.Address)
	server.SetTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
	server.SetLookups(
		ingest.NewGeocodingClient(cfg.Forecast.GeocodingURL),
		ingest.NewAirQualityClient(cfg.Forecast.AirQualityURL),
	)

	cache := imagegen.NewCache(filepath.Join(filepath.Dir(cfg.Database.Path), "images"), 7*24*time.Hour)
	gen, err := imagegen.NewGenerator(cfg.Narrative.APIKey, cfg.Narrative.BaseURL)
	if err != nil {
		log.Infof("backdrop generation disabled: %v", err)
	}
	server.SetBackdrops(gen, cache)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoPoll {
		go scheduler.Run(ctx)
	} else {
		log.Infof("polling disabled (--no-poll)")
	}

	return server.Run(ctx)
}

type CalcCmd struct {
	Location  int64    `help:"Saved location ID."`
	Lat       *float64 `help:"Latitude in degrees."`
	Lon       *float64 `help:"Longitude in degrees."`
	Name      string   `help:"Name for a new location."`
	Skin      string   `help:"Fitzpatrick skin type." enum:"I,II,III,IV,V,VI" required:""`
	SPF       string   `name:"spf" help:"Sunscreen level." enum:"NONE,SPF_15,SPF_30,SPF_50_PLUS" default:"NONE"`
	Sweat     string   `help:"Sweat level." enum:"LOW,MEDIUM,HIGH" default:"LOW"`
	At        string   `help:"Start time (RFC 3339), defaults to now."`
	Narrative bool     `help:"Ask for a written summary."`
	JSON      bool     `name:"json" help:"Print the estimate as JSON."`
	Card      string   `help:"Write a PNG share card to this path." type:"path"`
}

func (c *CalcCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	req := exposure.Request{
		LocationID: c.Location,
		Latitude:   c.Lat,
		Longitude:  c.Lon,
		Name:       c.Name,
		Skin:       burn.SkinType(c.Skin),
		SPF:        burn.SPFLevel(c.SPF),
		Sweat:      burn.SweatLevel(c.Sweat),
		Narrative:  c.Narrative,
	}
	if c.At != "" {
		at, err := time.Parse(time.RFC3339, c.At)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		req.Now = at
	}

	scheduler, err := newScheduler(a.cfg, a.store)
	if err != nil {
		return err
	}
	svc := newService(a.cfg, a.store, scheduler)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	est, err := svc.Estimate(ctx, req)
	if err != nil {
		if errors.Is(err, exposure.ErrNoForecast) {
			return fmt.Errorf("%w (is the forecast service reachable?)", err)
		}
		return err
	}

	if c.Card != "" {
		data, err := imagegen.RenderCard(nil, imagegen.CardData{
			Location: est.LocationName,
			Timezone: est.Timezone,
			Now:      est.Now,
			Skin:     est.Skin,
			SPF:      est.SPF,
			Result:   est.Result,
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Card, data, 0o644); err != nil {
			return fmt.Errorf("write card: %w", err)
		}
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(est)
	}
	printEstimate(est)
	return nil
}

func printEstimate(est *exposure.Estimate) {
	zone := tz.Location(est.Timezone)
	res := est.Result

	fmt.Printf("%s (%.3f, %.3f) %s\n", est.LocationName, est.Latitude, est.Longitude, est.Timezone)
	fmt.Printf("Skin %s, %s, sweat %s\n", est.Skin, burn.SPFLevels[est.SPF].Label, strings.ToLower(est.Sweat.Profile().Label))
	if len(res.Points) == 0 {
		fmt.Println("Not enough forecast data to estimate.")
		return
	}

	label := imagegen.BurnLabel(est.Now, res.BurnTime)
	if res.BurnTime != nil {
		label += " (" + res.BurnTime.In(zone).Format("3:04 PM") + ")"
	}
	fmt.Println(label)
	fmt.Printf("%d points at %.0f minute slices, damage %.0f%%", len(res.Points), res.SliceMinutes(), res.FinalDamage())
	if res.Truncated {
		fmt.Print(" (forecast window truncated)")
	}
	fmt.Println()
	for _, line := range res.Advice {
		fmt.Println("- " + line)
	}
	if est.Narrative != "" {
		fmt.Println()
		fmt.Println(est.Narrative)
	}
}

type FetchCmd struct {
	Location int64 `help:"Only refresh this location ID."`
	Replay   bool  `help:"Reload the location's last stored response instead of fetching."`
}

func (c *FetchCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := newScheduler(a.cfg, a.store)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if c.Replay && c.Location == 0 {
		return errors.New("--replay needs --location")
	}
	if c.Location == 0 {
		log.Infof("refreshing all locations")
		return scheduler.IngestOnce(ctx)
	}

	loc, err := a.store.GetLocation(c.Location)
	if err != nil {
		return err
	}
	if loc == nil {
		return fmt.Errorf("location %d not found", c.Location)
	}
	refresh := func() (*models.Forecast, error) { return scheduler.RefreshLocation(ctx, *loc) }
	if c.Replay {
		refresh = func() (*models.Forecast, error) { return scheduler.ReplayLatest(*loc) }
	}
	forecast, err := refresh()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d hours from %s\n", loc.Name, len(forecast.Hourly), forecast.Source)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := a.store.MigrationVersion()
	if err != nil {
		return err
	}
	fmt.Printf("schema at version %d\n", version)
	return nil
}
