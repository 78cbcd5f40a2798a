// Package scoring computes weighted work scores and client efficiency.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pbaille/workhours/internal/domain"
	"go.uber.org/zap"
)

// GroupBy names the dimension scores are aggregated over
type GroupBy string

const (
	ByClient     GroupBy = "client"
	ByTechnician GroupBy = "technician"
	ByGroup      GroupBy = "group"
)

// ParseGroupBy validates a grouping name
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(s); g {
	case ByClient, ByTechnician, ByGroup:
		return g, nil
	}
	return "", fmt.Errorf("unknown grouping %q", s)
}

// Ungrouped names the bucket of records whose client has no group
const Ungrouped = "Ungrouped"

// Store supplies weighted records and client weights
type Store interface {
	ScoredRecords(ctx context.Context, f domain.DateFilter) ([]domain.ScoredRecord, error)
	ListWeights(ctx context.Context, kind domain.Kind) ([]domain.Weight, error)
}

// Score is the aggregate of one grouping key
type Score struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	TotalScore   float64 `json:"total_score"`
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	Hours        float64 `json:"hours"`
}

// ClientEfficiency is the value delivered per hour for one client
type ClientEfficiency struct {
	ClientID      string  `json:"client_id"`
	ClientName    string  `json:"client_name"`
	Ratio         float64 `json:"ratio"`
	Hours         float64 `json:"hours"`
	Count         int     `json:"count"`
	OverThreshold bool    `json:"over_threshold"`
}

// Efficiency is the efficiency report over a date range. Threshold is
// only meaningful when ThresholdDefined is true.
type Efficiency struct {
	Clients          []ClientEfficiency `json:"clients"`
	Threshold        float64            `json:"threshold"`
	ThresholdDefined bool               `json:"threshold_defined"`
	Flagged          []string           `json:"flagged"`
}

// Engine computes reports from stored records
type Engine struct {
	store  Store
	logger *zap.Logger
}

// New creates an Engine
func New(s Store, logger *zap.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

func clamp(w int) float64 {
	if w < 1 {
		return 1
	}
	return float64(w)
}

// RecordScore is the composite score of one record. Unset or zero weights
// count as 1.
func RecordScore(r domain.ScoredRecord) float64 {
	return clamp(r.TypeWeight) * clamp(r.ClientWeight) * clamp(r.GroupWeight) * r.Hours
}

// ComputeScores aggregates record scores per client, technician or group,
// highest total first.
func (e *Engine) ComputeScores(ctx context.Context, groupBy GroupBy, f domain.DateFilter) ([]Score, error) {
	if _, err := ParseGroupBy(string(groupBy)); err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}

	records, err := e.store.ScoredRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("compute scores: %w", err)
	}

	byKey := make(map[string]*Score)
	for _, r := range records {
		key, name := keyOf(groupBy, r)
		s, ok := byKey[key]
		if !ok {
			s = &Score{Key: key, Name: name}
			byKey[key] = s
		}
		s.TotalScore += RecordScore(r)
		s.Hours += r.Hours
		s.Count++
	}

	scores := make([]Score, 0, len(byKey))
	for _, s := range byKey {
		s.AverageScore = s.TotalScore / float64(s.Count)
		scores = append(scores, *s)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].TotalScore != scores[j].TotalScore {
			return scores[i].TotalScore > scores[j].TotalScore
		}
		if scores[i].Name != scores[j].Name {
			return scores[i].Name < scores[j].Name
		}
		return scores[i].Key < scores[j].Key
	})

	e.logger.Debug("computed scores",
		zap.String("group_by", string(groupBy)),
		zap.Int("records", len(records)),
		zap.Int("keys", len(scores)),
	)
	return scores, nil
}

func keyOf(groupBy GroupBy, r domain.ScoredRecord) (string, string) {
	switch groupBy {
	case ByTechnician:
		return r.TechnicianID, r.TechnicianName
	case ByGroup:
		if r.GroupID == "" {
			return "", Ungrouped
		}
		return r.GroupID, r.GroupName
	default:
		return r.ClientID, r.ClientName
	}
}

// Threshold is the mean of every assigned client weight. It fails with
// domain.ErrThresholdUndefined when no client has a weight.
func (e *Engine) Threshold(ctx context.Context) (float64, error) {
	weights, err := e.store.ListWeights(ctx, domain.KindClient)
	if err != nil {
		return 0, fmt.Errorf("client weights: %w", err)
	}
	if len(weights) == 0 {
		return 0, domain.ErrThresholdUndefined
	}

	sum := 0
	for _, w := range weights {
		sum += w.Weight
	}
	return float64(sum) / float64(len(weights)), nil
}

// ComputeEfficiency reports, per client with records in range, the weighted
// hours excluding the client's own weight divided by raw hours. Clients
// whose ratio is strictly above the threshold are flagged.
func (e *Engine) ComputeEfficiency(ctx context.Context, f domain.DateFilter) (*Efficiency, error) {
	records, err := e.store.ScoredRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("compute efficiency: %w", err)
	}

	type acc struct {
		name     string
		weighted float64
		hours    float64
		count    int
	}
	byClient := make(map[string]*acc)
	for _, r := range records {
		a, ok := byClient[r.ClientID]
		if !ok {
			a = &acc{name: r.ClientName}
			byClient[r.ClientID] = a
		}
		a.weighted += clamp(r.TypeWeight) * clamp(r.GroupWeight) * r.Hours
		a.hours += r.Hours
		a.count++
	}

	out := &Efficiency{Flagged: []string{}}
	beta, err := e.Threshold(ctx)
	switch {
	case err == nil:
		out.Threshold = beta
		out.ThresholdDefined = true
	case errors.Is(err, domain.ErrThresholdUndefined):
		e.logger.Info("no client weights assigned, efficiency threshold undefined")
	default:
		return nil, fmt.Errorf("compute efficiency: %w", err)
	}

	out.Clients = make([]ClientEfficiency, 0, len(byClient))
	for id, a := range byClient {
		if a.hours <= 0 {
			continue
		}
		c := ClientEfficiency{
			ClientID:   id,
			ClientName: a.name,
			Ratio:      a.weighted / a.hours,
			Hours:      a.hours,
			Count:      a.count,
		}
		c.OverThreshold = out.ThresholdDefined && c.Ratio > out.Threshold
		out.Clients = append(out.Clients, c)
	}
	sort.Slice(out.Clients, func(i, j int) bool {
		ci, cj := out.Clients[i], out.Clients[j]
		if ci.Ratio != cj.Ratio {
			return ci.Ratio > cj.Ratio
		}
		if ci.ClientName != cj.ClientName {
			return ci.ClientName < cj.ClientName
		}
		return ci.ClientID < cj.ClientID
	})

	for _, c := range out.Clients {
		if c.OverThreshold {
			out.Flagged = append(out.Flagged, c.ClientID)
		}
	}
	return out, nil
}
