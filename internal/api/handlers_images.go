package api

import (
	"context"
	"net/http"
	"time"

	"github.com/lox/sunburntimer/internal/imagegen"
	"github.com/lox/sunburntimer/internal/log"
)

// handleCard renders a share card for the same query parameters as /api/burn.
// Rendered cards are cached briefly by query string.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	key := r.URL.RawQuery
	if data, ok := s.cards.Get(key); ok {
		serveCard(w, data)
		return
	}

	req, err := parseBurnRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	req.Narrative = false

	est, err := s.exposure.Estimate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	band := imagegen.BandFor(imagegen.PeakUV(est.Result))
	data, err := imagegen.RenderCard(s.backdrop(band), imagegen.CardData{
		Location: est.LocationName,
		Timezone: est.Timezone,
		Now:      est.Now,
		Skin:     est.Skin,
		SPF:      est.SPF,
		Result:   est.Result,
	})
	if err != nil {
		log.Errorf("api: render card: %v", err)
		writeError(w, http.StatusInternalServerError, "card rendering failed")
		return
	}

	s.cards.Set(key, data)
	serveCard(w, data)
}

// backdrop returns the cached backdrop for band, or nil while one is generated in the background.
func (s *Server) backdrop(band imagegen.UVBand) []byte {
	if s.backdrops == nil {
		return nil
	}
	if data, ok := s.backdrops.Get(band); ok {
		return data
	}
	if s.backdropGen != nil && s.genMu.TryLock() {
		go func() {
			defer s.genMu.Unlock()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			data, err := s.backdropGen.Generate(ctx, band)
			if err != nil {
				log.Warnf("api: backdrop generation for %s failed: %v", band, err)
				return
			}
			if err := s.backdrops.Set(band, data); err != nil {
				log.Warnf("api: cache backdrop: %v", err)
			}
		}()
	}
	return nil
}

func serveCard(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}
