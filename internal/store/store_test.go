package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/sunburntimer/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func bright() models.Location {
	return models.Location{
		Name:        "Bright",
		Admin1:      sql.NullString{String: "Victoria", Valid: true},
		CountryCode: sql.NullString{String: "AU", Valid: true},
		Latitude:    -36.729,
		Longitude:   146.968,
		Timezone:    "Australia/Melbourne",
	}
}

func TestMigrateIdempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestUpsertAndGetLocation(t *testing.T) {
	store := setupTestStore(t)

	id, err := store.UpsertLocation(bright())
	if err != nil {
		t.Fatalf("UpsertLocation: %v", err)
	}

	loc, err := store.GetLocation(id)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if loc == nil {
		t.Fatal("GetLocation returned nil")
	}
	if loc.Name != "Bright" {
		t.Errorf("Name = %q, want Bright", loc.Name)
	}
	if loc.Timezone != "Australia/Melbourne" {
		t.Errorf("Timezone = %q, want Australia/Melbourne", loc.Timezone)
	}

	renamed := bright()
	renamed.Name = "Bright VIC"
	again, err := store.UpsertLocation(renamed)
	if err != nil {
		t.Fatalf("UpsertLocation (update): %v", err)
	}
	if again != id {
		t.Errorf("upsert of same coordinates returned id %d, want %d", again, id)
	}

	found, err := store.FindLocation(-36.729, 146.968)
	if err != nil {
		t.Fatalf("FindLocation: %v", err)
	}
	if found == nil || found.Name != "Bright VIC" {
		t.Errorf("FindLocation = %+v, want Bright VIC", found)
	}
}

func TestGetLocation_Missing(t *testing.T) {
	store := setupTestStore(t)

	loc, err := store.GetLocation(42)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if loc != nil {
		t.Errorf("GetLocation = %+v, want nil", loc)
	}
}

func TestListAndDeleteLocations(t *testing.T) {
	store := setupTestStore(t)

	id, _ := store.UpsertLocation(bright())
	other := models.Location{Name: "Apollo Bay", Latitude: -38.757, Longitude: 143.671}
	if _, err := store.UpsertLocation(other); err != nil {
		t.Fatalf("UpsertLocation: %v", err)
	}

	locations, err := store.ListLocations()
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("len(locations) = %d, want 2", len(locations))
	}
	if locations[0].Name != "Apollo Bay" {
		t.Errorf("locations[0] = %q, want Apollo Bay", locations[0].Name)
	}
	if locations[1].Timezone != "Australia/Melbourne" || locations[0].Timezone != "UTC" {
		t.Errorf("timezones = %q, %q", locations[0].Timezone, locations[1].Timezone)
	}

	if err := store.DeleteLocation(id); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}
	locations, _ = store.ListLocations()
	if len(locations) != 1 {
		t.Errorf("len(locations) after delete = %d, want 1", len(locations))
	}
}

func sampleForecast(start time.Time, uvs ...float64) models.Forecast {
	f := models.Forecast{
		Source:    "open-meteo",
		FetchedAt: start,
		Timezone:  "Australia/Melbourne",
		Elevation: sql.NullFloat64{Float64: 313, Valid: true},
		CurrentUV: sql.NullFloat64{Float64: uvs[0], Valid: true},
	}
	for i, uv := range uvs {
		f.Hourly = append(f.Hourly, models.HourlyUV{
			Time:        start.Add(time.Duration(i) * time.Hour),
			UVIndex:     uv,
			Temperature: sql.NullFloat64{Float64: 20 + float64(i), Valid: true},
		})
	}
	f.Days = []models.DaylightWindow{{
		Date:    time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		Sunrise: start.Add(-3 * time.Hour),
		Sunset:  start.Add(11 * time.Hour),
	}}
	return f
}

func TestSaveAndGetForecast(t *testing.T) {
	store := setupTestStore(t)
	id, _ := store.UpsertLocation(bright())

	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	n, err := store.SaveForecast(id, sampleForecast(start, 1, 3, 6, 9, 7, 4))
	if err != nil {
		t.Fatalf("SaveForecast: %v", err)
	}
	if n != 6 {
		t.Errorf("SaveForecast stored %d rows, want 6", n)
	}

	f, err := store.GetForecast(id, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}
	if f == nil {
		t.Fatal("GetForecast returned nil")
	}
	// One hour of history before since is kept for interpolation.
	if len(f.Hourly) != 5 {
		t.Fatalf("len(hourly) = %d, want 5", len(f.Hourly))
	}
	if !f.Hourly[0].Time.Equal(start.Add(time.Hour)) {
		t.Errorf("first hour = %v, want %v", f.Hourly[0].Time, start.Add(time.Hour))
	}
	if f.Hourly[2].UVIndex != 9 {
		t.Errorf("hourly[2].UVIndex = %v, want 9", f.Hourly[2].UVIndex)
	}
	if !f.FetchedAt.Equal(start) {
		t.Errorf("FetchedAt = %v, want %v", f.FetchedAt, start)
	}
	if f.Source != "open-meteo" {
		t.Errorf("Source = %q, want open-meteo", f.Source)
	}
	if !f.CurrentUV.Valid || f.CurrentUV.Float64 != 1 {
		t.Errorf("CurrentUV = %+v, want 1", f.CurrentUV)
	}
	if len(f.Days) != 1 {
		t.Fatalf("len(days) = %d, want 1", len(f.Days))
	}

	// A second fetch overwrites overlapping hours.
	if _, err := store.SaveForecast(id, sampleForecast(start, 2, 2, 2)); err != nil {
		t.Fatalf("SaveForecast (refresh): %v", err)
	}
	f, _ = store.GetForecast(id, start)
	if f.Hourly[0].UVIndex != 2 || f.Hourly[3].UVIndex != 9 {
		t.Errorf("after refresh hourly = %v, %v; want 2, 9", f.Hourly[0].UVIndex, f.Hourly[3].UVIndex)
	}
}

func TestGetForecast_NeverFetched(t *testing.T) {
	store := setupTestStore(t)
	id, _ := store.UpsertLocation(bright())

	f, err := store.GetForecast(id, time.Now())
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}
	if f != nil {
		t.Errorf("GetForecast = %+v, want nil", f)
	}
}

func TestSaveForecast_UnknownLocation(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.SaveForecast(99, sampleForecast(time.Now().UTC(), 1)); err == nil {
		t.Error("expected error for unknown location")
	}
}

func TestPruneForecasts(t *testing.T) {
	store := setupTestStore(t)
	id, _ := store.UpsertLocation(bright())

	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	store.SaveForecast(id, sampleForecast(start, 1, 2, 3, 4))

	n, err := store.PruneForecasts(start.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("PruneForecasts: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d rows, want 2", n)
	}
}

func TestSavePreferences_SweatDefault(t *testing.T) {
	store := setupTestStore(t)

	tests := []struct {
		name      string
		spf       sql.NullString
		sweat     sql.NullString
		wantSweat sql.NullString
		wantReady bool
	}{
		{
			name:      "sunscreen without sweat defaults to low",
			spf:       sql.NullString{String: "SPF_30", Valid: true},
			wantSweat: sql.NullString{String: "LOW", Valid: true},
			wantReady: true,
		},
		{
			name:      "explicit sweat kept",
			spf:       sql.NullString{String: "SPF_15", Valid: true},
			sweat:     sql.NullString{String: "HIGH", Valid: true},
			wantSweat: sql.NullString{String: "HIGH", Valid: true},
			wantReady: true,
		},
		{
			name:      "no sunscreen leaves sweat unset",
			spf:       sql.NullString{String: "NONE", Valid: true},
			wantReady: true,
		},
		{
			name: "nothing chosen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := models.Preferences{
				Profile:    tt.name,
				SkinType:   sql.NullString{String: "II", Valid: tt.spf.Valid},
				SPFLevel:   tt.spf,
				SweatLevel: tt.sweat,
			}
			if _, err := store.SavePreferences(prefs); err != nil {
				t.Fatalf("SavePreferences: %v", err)
			}

			got, err := store.GetPreferences(tt.name)
			if err != nil {
				t.Fatalf("GetPreferences: %v", err)
			}
			if got == nil {
				t.Fatal("GetPreferences returned nil")
			}
			if got.SweatLevel != tt.wantSweat {
				t.Errorf("SweatLevel = %+v, want %+v", got.SweatLevel, tt.wantSweat)
			}
			if got.Ready() != tt.wantReady {
				t.Errorf("Ready() = %v, want %v", got.Ready(), tt.wantReady)
			}
		})
	}
}

func TestGetPreferences_Missing(t *testing.T) {
	store := setupTestStore(t)

	p, err := store.GetPreferences("nobody")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if p != nil {
		t.Errorf("GetPreferences = %+v, want nil", p)
	}
}

func TestInsertAndGetCalculation(t *testing.T) {
	store := setupTestStore(t)

	started := time.Date(2025, 1, 10, 1, 0, 0, 0, time.UTC)
	burn := started.Add(83 * time.Minute)
	rec := models.CalculationRecord{
		ID:          "6f1c2a8e-0000-4000-8000-000000000001",
		Latitude:    -36.729,
		Longitude:   146.968,
		SkinType:    "VI",
		SPFLevel:    "NONE",
		SweatLevel:  "LOW",
		StartedAt:   started,
		BurnTime:    sql.NullTime{Time: burn, Valid: true},
		Resolution:  4,
		PointCount:  6,
		FinalDamage: 100,
	}
	if err := store.InsertCalculation(rec); err != nil {
		t.Fatalf("InsertCalculation: %v", err)
	}

	got, err := store.GetCalculation(rec.ID)
	if err != nil {
		t.Fatalf("GetCalculation: %v", err)
	}
	if got == nil {
		t.Fatal("GetCalculation returned nil")
	}
	if !got.BurnTime.Valid || !got.BurnTime.Time.Equal(burn) {
		t.Errorf("BurnTime = %+v, want %v", got.BurnTime, burn)
	}
	if got.Resolution != 4 || got.PointCount != 6 {
		t.Errorf("Resolution, PointCount = %d, %d; want 4, 6", got.Resolution, got.PointCount)
	}

	recent, err := store.RecentCalculations(10)
	if err != nil {
		t.Fatalf("RecentCalculations: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("len(recent) = %d, want 1", len(recent))
	}
}

func TestIngestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	locID := int64(7)

	run, err := store.StartIngestRun("open-meteo", "v1/forecast", &locID)
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	run.Success = false
	run.HTTPStatus = sql.NullInt64{Int64: 503, Valid: true}
	run.ErrorMessage = sql.NullString{String: "upstream unavailable", Valid: true}
	if err := store.CompleteIngestRun(run); err != nil {
		t.Fatalf("CompleteIngestRun: %v", err)
	}

	failed, err := store.RecentIngestFailures(5)
	if err != nil {
		t.Fatalf("RecentIngestFailures: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("len(failed) = %d, want 1", len(failed))
	}
	if failed[0].ErrorMessage.String != "upstream unavailable" {
		t.Errorf("ErrorMessage = %q", failed[0].ErrorMessage.String)
	}
	if !failed[0].LocationID.Valid || failed[0].LocationID.Int64 != 7 {
		t.Errorf("LocationID = %+v, want 7", failed[0].LocationID)
	}
	if !failed[0].FinishedAt.Valid {
		t.Error("FinishedAt not set")
	}

	ok, err := store.StartIngestRun("open-meteo", "v1/forecast", &locID)
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	ok.Success = true
	ok.RecordsStored = sql.NullInt64{Int64: 72, Valid: true}
	if err := store.CompleteIngestRun(ok); err != nil {
		t.Fatalf("CompleteIngestRun: %v", err)
	}

	summaries, err := store.IngestSummaries(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IngestSummaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1", len(summaries))
	}
	sum := summaries[0]
	if sum.Runs != 2 || sum.Failures != 1 || sum.RecordsStored != 72 {
		t.Errorf("summary = %+v, want 2 runs, 1 failure, 72 records", sum)
	}
	if !sum.LastSuccess.Valid {
		t.Error("LastSuccess not set")
	}
	if sum.LastError.String != "upstream unavailable" {
		t.Errorf("LastError = %q", sum.LastError.String)
	}

	later, err := store.IngestSummaries(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IngestSummaries: %v", err)
	}
	if len(later) != 0 {
		t.Errorf("len(later) = %d, want 0", len(later))
	}
}

func TestRawPayloadDedup(t *testing.T) {
	store := setupTestStore(t)
	payload := []byte(`{"hourly":{"uv_index":[1,2,3]}}`)

	id, err := store.StoreRawPayload(nil, "open-meteo", "v1/forecast", nil, payload)
	if err != nil {
		t.Fatalf("StoreRawPayload: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a payload id")
	}

	dup, err := store.StoreRawPayload(nil, "open-meteo", "v1/forecast", nil, payload)
	if err != nil {
		t.Fatalf("StoreRawPayload (dup): %v", err)
	}
	if dup != 0 {
		t.Errorf("duplicate payload id = %d, want 0", dup)
	}

	got, err := store.GetRawPayload(id)
	if err != nil {
		t.Fatalf("GetRawPayload: %v", err)
	}
	if got == nil || string(got.Body) != string(payload) {
		t.Fatalf("GetRawPayload = %+v, want body %s", got, payload)
	}
	if got.IngestRunID.Valid || got.LocationID.Valid {
		t.Errorf("GetRawPayload ids = %v, %v, want both null", got.IngestRunID, got.LocationID)
	}

	n, err := store.PruneRawPayloads(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneRawPayloads: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d payloads, want 1", n)
	}
	if got, _ := store.GetRawPayload(id); got != nil {
		t.Error("payload still present after prune")
	}
}

func TestLatestRawPayload(t *testing.T) {
	store := setupTestStore(t)
	locID, err := store.UpsertLocation(models.Location{Name: "Bright", Latitude: -36.73, Longitude: 146.96})
	if err != nil {
		t.Fatalf("UpsertLocation: %v", err)
	}

	if got, err := store.LatestRawPayload("open-meteo", locID); err != nil || got != nil {
		t.Fatalf("LatestRawPayload on empty store = %v, %v, want nil, nil", got, err)
	}

	run, err := store.StartIngestRun("open-meteo", "v1/forecast", &locID)
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	for _, body := range []string{`{"n":1}`, `{"n":2}`} {
		if _, err := store.StoreRawPayload(&run.ID, "open-meteo", "v1/forecast", &locID, []byte(body)); err != nil {
			t.Fatalf("StoreRawPayload: %v", err)
		}
	}
	if _, err := store.StoreRawPayload(nil, "ftp", "/uv.csv", &locID, []byte("t,uvi")); err != nil {
		t.Fatalf("StoreRawPayload: %v", err)
	}

	got, err := store.LatestRawPayload("open-meteo", locID)
	if err != nil {
		t.Fatalf("LatestRawPayload: %v", err)
	}
	if got == nil || string(got.Body) != `{"n":2}` {
		t.Fatalf("LatestRawPayload = %+v, want body {\"n\":2}", got)
	}
	if got.IngestRunID.Int64 != run.ID || got.LocationID.Int64 != locID {
		t.Errorf("LatestRawPayload ids = %v, %v, want %d, %d", got.IngestRunID, got.LocationID, run.ID, locID)
	}
}
