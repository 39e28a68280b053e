package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/senseihq/sensei-go/pkg/core"
	"github.com/senseihq/sensei-go/pkg/core/types"
)

// HistoryCap bounds the persisted log. Older records fall off the end.
const HistoryCap = 50

// FallbackDeviationType labels records whose diagnosis carried no
// deviation type.
const FallbackDeviationType = "Logic"

// StrengthThreshold is the session count above which the profile reports
// the established-learner strengths instead of the newcomer one. The
// labels and advice below are presentation content, kept as constants so
// callers can detect and restyle them.
const StrengthThreshold = 2

var (
	EstablishedStrengths = []string{"Persistent", "Analytical"}
	NewcomerStrengths    = []string{"Curious"}
)

const (
	GrowthAdvice     = "Pay closer attention to initial setup phases."
	OnboardingAdvice = "Start your first session to build your profile."
)

// Aggregator owns the bounded history log: it records completed
// diagnoses and derives the cognitive profile on every read.
type Aggregator struct {
	repo Repository
	cap  int
	log  *slog.Logger
}

// AggregatorOptions tune an Aggregator.
type AggregatorOptions struct {
	// Cap overrides HistoryCap when positive.
	Cap    int
	Logger *slog.Logger
}

func NewAggregator(repo Repository, opts AggregatorOptions) (*Aggregator, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository must not be nil")
	}
	if opts.Cap <= 0 {
		opts.Cap = HistoryCap
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Aggregator{repo: repo, cap: opts.Cap, log: opts.Logger}, nil
}

// Record validates a completed diagnosis and prepends it to the log,
// truncating to the cap. Newest-first ordering means the retained
// records after truncation are always the most recently recorded ones.
func (a *Aggregator) Record(ctx context.Context, rec *types.Analysis) error {
	if err := rec.Validate(); err != nil {
		return core.NewMalformedResponseError(err.Error())
	}

	log, err := a.repo.Load(ctx)
	if err != nil {
		return err
	}
	log = append([]types.Analysis{*rec}, log...)
	if len(log) > a.cap {
		log = log[:a.cap]
	}
	return a.repo.Save(ctx, log)
}

// History returns the log as stored, newest first. A storage failure
// degrades to an empty history.
func (a *Aggregator) History(ctx context.Context) []types.Analysis {
	log, err := a.repo.Load(ctx)
	if err != nil {
		a.log.Warn("history unreadable, showing empty log", "err", err)
		return nil
	}
	return log
}

// Profile recomputes the cognitive profile from the log. It is derived
// state: nothing here is persisted.
func (a *Aggregator) Profile(ctx context.Context) types.CognitiveProfile {
	log := a.History(ctx)

	errorTypes := make(map[string]int)
	for _, rec := range log {
		kind := rec.StepByStepLogic.CriticalDeviationType
		if kind == "" {
			kind = FallbackDeviationType
		}
		errorTypes[kind]++
	}

	profile := types.CognitiveProfile{
		TotalSessions: len(log),
		TopErrorTypes: errorTypes,
		Strengths:     append([]string(nil), NewcomerStrengths...),
		GrowthAdvice:  OnboardingAdvice,
	}
	if len(log) > StrengthThreshold {
		profile.Strengths = append([]string(nil), EstablishedStrengths...)
	}
	if len(log) > 0 {
		profile.GrowthAdvice = GrowthAdvice
	}
	return profile
}

// Clear wipes the log.
func (a *Aggregator) Clear(ctx context.Context) error {
	return a.repo.Save(ctx, nil)
}
