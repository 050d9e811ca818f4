// Package main implements a mock prediction server for e2e testing.
// It serves the span-matching, entity-linking, mention-extraction, and
// term-mapping endpoints the annotation backends call, answering from JSON
// fixture files keyed on lowercase substrings of the input text. This
// eliminates the need for real model services during wiring tests, making
// them fast, deterministic, and offline-capable.
//
// Usage:
//
//	mock-predictors -fixtures /path/to/fixtures -port 8081
//
// The fixtures directory may contain match.json, link.json, mentions.json,
// and map.json. Each maps a lowercase trigger to the items returned when the
// trigger occurs in the request text (for map.json, when it equals the
// requested term). Missing files leave that endpoint returning empty results.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// --- Wire types shared with the annotation backends ---

type span struct {
	Text      string  `json:"text"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Inclusion bool    `json:"inclusion"`
	Exclusion bool    `json:"exclusion"`
}

type entity struct {
	Text      string  `json:"text"`
	ConceptID string  `json:"concept_id"`
	Score     float64 `json:"score"`
}

type termMapping struct {
	CURIE string  `json:"curie"`
	Score float64 `json:"score"`
}

// fixtures holds every endpoint's trigger tables.
type fixtures struct {
	Match    map[string][]span        // substring → spans
	Link     map[string][]entity      // substring → linked entities
	Mentions map[string][]string      // substring → extracted mentions
	Map      map[string][]termMapping // exact term → candidates, best first
}

func loadFixtures(dir string) (*fixtures, error) {
	f := &fixtures{
		Match:    map[string][]span{},
		Link:     map[string][]entity{},
		Mentions: map[string][]string{},
		Map:      map[string][]termMapping{},
	}
	if dir == "" {
		return f, nil
	}

	load := func(name string, out any) error {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		return nil
	}

	if err := load("match.json", &f.Match); err != nil {
		return nil, err
	}
	if err := load("link.json", &f.Link); err != nil {
		return nil, err
	}
	if err := load("mentions.json", &f.Mentions); err != nil {
		return nil, err
	}
	if err := load("map.json", &f.Map); err != nil {
		return nil, err
	}
	return f, nil
}

type server struct {
	fixtures *fixtures
	calls    atomic.Int64
}

func (s *server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string   `json:"text"`
		Labels []string `json:"labels"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	allowed := make(map[string]bool, len(req.Labels))
	for _, l := range req.Labels {
		allowed[l] = true
	}

	spans := []span{}
	text := strings.ToLower(req.Text)
	for trigger, hits := range s.fixtures.Match {
		if !strings.Contains(text, trigger) {
			continue
		}
		for _, hit := range hits {
			// Honor the candidate label set the way a real model would.
			if len(req.Labels) > 0 && !allowed[hit.Label] {
				continue
			}
			spans = append(spans, hit)
		}
	}
	s.respond(w, map[string]any{"spans": spans})
}

func (s *server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	entities := []entity{}
	text := strings.ToLower(req.Text)
	for trigger, hits := range s.fixtures.Link {
		if strings.Contains(text, trigger) {
			entities = append(entities, hits...)
		}
	}
	s.respond(w, map[string]any{"entities": entities})
}

func (s *server) handleMentions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	mentions := []string{}
	text := strings.ToLower(req.Text)
	for trigger, hits := range s.fixtures.Mentions {
		if strings.Contains(text, trigger) {
			mentions = append(mentions, hits...)
		}
	}
	s.respond(w, map[string]any{"mentions": mentions})
}

func (s *server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term string `json:"term"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	mappings := s.fixtures.Map[strings.ToLower(req.Term)]
	if mappings == nil {
		mappings = []termMapping{}
	}
	s.respond(w, map[string]any{"mappings": mappings})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, map[string]any{"status": "ok", "calls": s.calls.Load()})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	s.calls.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *server) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/match", s.handleMatch)
	mux.HandleFunc("/v1/link", s.handleLink)
	mux.HandleFunc("/v1/mentions", s.handleMentions)
	mux.HandleFunc("/v1/map", s.handleMap)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func main() {
	fixturesDir := flag.String("fixtures", "", "Directory of fixture JSON files")
	port := flag.Int("port", 8081, "Listen port")
	flag.Parse()

	f, err := loadFixtures(*fixturesDir)
	if err != nil {
		log.Fatalf("load fixtures: %v", err)
	}

	s := &server{fixtures: f}
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock-predictors listening on %s (fixtures: %s)", addr, *fixturesDir)
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		log.Fatal(err)
	}
}
