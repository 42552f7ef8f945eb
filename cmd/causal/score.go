package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TomHumphrey150/OpenJaw-sub004/activity"
	"github.com/TomHumphrey150/OpenJaw-sub004/graph"
	"github.com/TomHumphrey150/OpenJaw-sub004/score"
)

// activityDoc is the on-disk form of activity records.
//
//	interventions:
//	  - id: TX_NIGHT_GUARD
//	    effectiveness: 0.8
//	    activeDays: ["2026-10-12", "2026-10-13"]
type activityDoc struct {
	Interventions []struct {
		ID            string   `yaml:"id"`
		Effectiveness float64  `yaml:"effectiveness"`
		ActiveDays    []string `yaml:"activeDays"`
	} `yaml:"interventions"`
}

// loadStrengths reads a JSON or YAML map of intervention id to strength.
func loadStrengths(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading strengths: %w", err)
	}
	var out map[string]float64
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing strengths: %w", err)
	}
	return out, nil
}

// loadActivity reads activity records and derives strengths as of now.
// Days are calendar dates in now's location.
func loadActivity(path string, now time.Time) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading activity: %w", err)
	}
	return parseActivity(data, now)
}

func parseActivity(data []byte, now time.Time) (map[string]float64, error) {
	var doc activityDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing activity: %w", err)
	}

	records := make([]activity.Record, 0, len(doc.Interventions))
	for _, in := range doc.Interventions {
		if in.ID == "" {
			return nil, fmt.Errorf("parsing activity: intervention id is required")
		}
		rec := activity.Record{InterventionID: in.ID, Effectiveness: in.Effectiveness}
		for _, day := range in.ActiveDays {
			t, err := time.ParseInLocation(time.DateOnly, day, now.Location())
			if err != nil {
				return nil, fmt.Errorf("parsing activity for %s: %w", in.ID, err)
			}
			rec.ActiveDays = append(rec.ActiveDays, t)
		}
		records = append(records, rec)
	}
	return activity.Strengths(records, now), nil
}

// scoreDiagram ranks every non-intervention node, keeping the top n when
// n > 0. Strengths for ids that are not interventions of the diagram are
// logged and ignored.
func scoreDiagram(logger *slog.Logger, d graph.Diagram, strengths map[string]float64, n int) []score.Ranked {
	for _, id := range sortedKeys(strengths) {
		if node, ok := d.Node(id); !ok || !node.IsIntervention() {
			logger.Warn("strength for unknown intervention ignored", "id", id)
		}
	}
	ranked := score.Rank(score.Compute(d, strengths))
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
