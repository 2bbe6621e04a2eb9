package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/pkg/api"
	"github.com/flipflow/flipflow/pkg/log"
)

type (
	// IntakeAgent appraises a new item into a structured profile. The
	// appraisal degrades rather than fails: vision first, text-only when
	// vision is unavailable, and a minimal placeholder as the floor, so
	// a run always leaves intake
	IntakeAgent struct {
		caps capability.Client
	}
)

const placeholderConfidence = 0.1

var _ Agent = (*IntakeAgent)(nil)

// NewIntakeAgent creates the intake agent over a capability client
func NewIntakeAgent(caps capability.Client) *IntakeAgent {
	return &IntakeAgent{caps: caps}
}

func (a *IntakeAgent) Step() api.Step {
	return api.StepIntake
}

func (a *IntakeAgent) Execute(
	ctx context.Context, st *api.RunState,
) (*Outcome, error) {
	profile := a.appraise(ctx, st)

	next := st.SetStatus(api.ItemAnalyzing).
		SetStep(api.StepListing).
		SetFields(st.Fields.SetProfile(profile))
	return Advance(next), nil
}

func (a *IntakeAgent) appraise(
	ctx context.Context, st *api.RunState,
) *api.ItemProfile {
	fields := st.Fields

	if len(fields.ImageKeys) > 0 {
		raw, err := a.caps.Invoke(ctx, capability.VisionProfile, api.Args{
			"description": fields.UserDescription,
			"image_keys":  fields.ImageKeys,
		})
		if err == nil {
			return parseProfile(raw)
		}
		slog.Warn("Vision appraisal unavailable",
			log.ItemID(st.ItemID),
			log.Error(err))
	}

	if fields.UserDescription != "" {
		raw, err := a.caps.Invoke(ctx, capability.TextProfile, api.Args{
			"description": fields.UserDescription,
		})
		if err == nil {
			return parseProfile(raw)
		}
		slog.Warn("Text appraisal unavailable",
			log.ItemID(st.ItemID),
			log.Error(err))
	}

	return placeholderProfile(fields.UserDescription)
}

func parseProfile(raw json.RawMessage) *api.ItemProfile {
	root := gjson.ParseBytes(raw)

	profile := &api.ItemProfile{
		Title:          root.Get("title").String(),
		Category:       root.Get("category").String(),
		Brand:          root.Get("brand").String(),
		Model:          root.Get("model").String(),
		Condition:      api.Condition(root.Get("condition").String()),
		ConditionNotes: root.Get("condition_notes").String(),
		Color:          root.Get("color").String(),
		Size:           root.Get("size").String(),
		Confidence:     root.Get("confidence").Float(),
	}
	for _, f := range root.Get("key_features").Array() {
		profile.KeyFeatures = append(profile.KeyFeatures, f.String())
	}

	if profile.Title == "" {
		profile.Title = "Untitled item"
	}
	if profile.Condition == "" {
		profile.Condition = api.ConditionGood
	}
	return profile
}

// placeholderProfile is the appraisal floor when no capability answers
func placeholderProfile(description string) *api.ItemProfile {
	title := strings.TrimSpace(description)
	if len(title) > 60 {
		title = strings.TrimSpace(title[:60])
	}
	if title == "" {
		title = "Untitled item"
	}
	return &api.ItemProfile{
		Title:      title,
		Category:   "other",
		Condition:  api.ConditionGood,
		Confidence: placeholderConfidence,
	}
}
