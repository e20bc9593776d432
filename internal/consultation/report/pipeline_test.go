// internal/consultation/report/pipeline_test.go
package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

func validResponse(agentID, text string) *models.AgentResponse {
	return &models.AgentResponse{
		AgentID: agentID,
		Round:   models.RoundInitial,
		Text:    text,
		Valid:   true,
	}
}

func TestBuildConsensusRequiresTwoAgents(t *testing.T) {
	builder := NewBuilder(Config{})

	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", "Physical therapy twice a week helped my back pain a lot."),
		validResponse("agent-2", "Weekly physical therapy sessions helped my back pain significantly."),
		validResponse("agent-3", "Doing yoga sorted it out, no clinic visits."),
	})

	require.NotEmpty(t, summary.ConsensusPoints)
	point := summary.ConsensusPoints[0]
	assert.Equal(t, 2, point.AgentCount)
	assert.Equal(t, 3, point.TotalAgents)
	assert.Contains(t, point.Text, "physical therapy")

	// The yoga point has single-agent support and must not appear.
	for _, p := range summary.ConsensusPoints {
		assert.NotContains(t, p.Text, "yoga")
	}
}

func TestBuildConsensusSamePointTwiceFromOneAgent(t *testing.T) {
	builder := NewBuilder(Config{})

	// One agent repeating itself does not make consensus.
	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", "Drink more water every day. Drink more water every day."),
		validResponse("agent-2", "I take magnesium supplements before bed."),
	})

	assert.Empty(t, summary.ConsensusPoints)
}

func TestBuildConsensusCappedAtFive(t *testing.T) {
	builder := NewBuilder(Config{ConsensusThreshold: 0.99})

	texts := []string{
		"Alpha treatment worked well for me overall.",
		"Bravo exercise helped my recovery and mobility.",
		"Charlie medication reduced my inflammation quickly.",
		"Delta stretches loosened my shoulders every morning.",
		"Echo vitamins improved my energy over weeks.",
		"Foxtrot massage relieved my muscle tension fully.",
	}
	// Splitting six shared sentences into two three-point halves gives every
	// cluster two-agent support.
	first := texts[0] + " " + texts[1] + " " + texts[2]
	second := texts[3] + " " + texts[4] + " " + texts[5]

	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", first),
		validResponse("agent-2", first),
		validResponse("agent-3", second),
		validResponse("agent-4", second),
	})

	assert.Len(t, summary.ConsensusPoints, 5)
}

func TestBuildDivergences(t *testing.T) {
	builder := NewBuilder(Config{})

	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", "I recommend acupuncture for chronic pain relief."),
		validResponse("agent-2", "I do not recommend acupuncture, it did nothing for me."),
		validResponse("agent-3", "I also recommend acupuncture after my own experience."),
	})

	require.Len(t, summary.Divergences, 1)
	pair := summary.Divergences[0]
	assert.Contains(t, pair.Negative, "do not recommend")
	assert.Contains(t, pair.Positive, "recommend")
	assert.InDelta(t, 2.0/3.0, pair.Ratio, 0.001)
}

func TestBuildDivergenceNegativeFormNotCountedAsPositive(t *testing.T) {
	builder := NewBuilder(Config{})

	// Only negative-polarity sentences exist, so no pair should be emitted
	// even though "do not recommend" textually contains "recommend".
	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", "I do not recommend surgery for this condition."),
		validResponse("agent-2", "I do not recommend surgery either without a second opinion."),
	})

	assert.Empty(t, summary.Divergences)
}

func TestBuildChecklists(t *testing.T) {
	builder := NewBuilder(Config{})

	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", "Bring your previous scan results to the appointment. If the pain spreads you should see a doctor immediately."),
		validResponse("agent-2", "Fasting for eight hours beforehand made my blood test smoother."),
		validResponse("agent-3", "Bring your previous scan results to the appointment."),
	})

	// Duplicate preparation sentence collapses to one item.
	require.Len(t, summary.Preparation, 2)
	assert.Contains(t, summary.Preparation[0], "Bring your previous scan results")
	require.Len(t, summary.DoctorReferrals, 1)
	assert.Contains(t, summary.DoctorReferrals[0], "see a doctor")
}

func TestBuildCostRange(t *testing.T) {
	builder := NewBuilder(Config{})

	tests := []struct {
		name  string
		texts []string
		want  *models.CostRange
	}{
		{
			name: "dollar signs and words aggregate",
			texts: []string{
				"The first visit cost me $150 and the follow-up was $90.",
				"I paid around 300 dollars in total for everything.",
			},
			want: &models.CostRange{Min: 90, Max: 300},
		},
		{
			name:  "comma separated amount",
			texts: []string{"The full procedure was $1,250.50 out of pocket."},
			want:  &models.CostRange{Min: 1250.50, Max: 1250.50},
		},
		{
			name:  "no mentions",
			texts: []string{"It resolved on its own after a few weeks of rest."},
			want:  nil,
		},
		{
			name:  "ceiling discards range",
			texts: []string{"It cost $50 at first but then $2000000 total, unbelievable."},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var responses []*models.AgentResponse
			for i, text := range tt.texts {
				responses = append(responses, validResponse("agent-"+string(rune('a'+i)), text))
			}
			summary := builder.Build(responses)
			if tt.want == nil {
				assert.Nil(t, summary.CostRange)
				return
			}
			require.NotNil(t, summary.CostRange)
			assert.Equal(t, tt.want.Min, summary.CostRange.Min)
			assert.Equal(t, tt.want.Max, summary.CostRange.Max)
		})
	}
}

func TestBuildExcerptsRedactAndTruncate(t *testing.T) {
	builder := NewBuilder(Config{})

	long := ""
	for i := 0; i < 40; i++ {
		long += "very long answer "
	}

	reaction := validResponse("agent-2", "After reading the others I agree that rest matters most here.")
	reaction.Round = models.RoundReaction

	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", long),
		reaction,
		{AgentID: "agent-3", Round: models.RoundInitial, Text: "too short", Valid: false},
	})

	// Invalid rows are excluded; valid rows get sequential opaque tokens.
	require.Len(t, summary.Excerpts, 2)
	assert.Equal(t, "Consultant A", summary.Excerpts[0].Token)
	assert.Equal(t, "Consultant B", summary.Excerpts[1].Token)
	assert.Equal(t, models.RoundReaction, summary.Excerpts[1].Round)
	assert.LessOrEqual(t, len([]rune(summary.Excerpts[0].Excerpt)), excerptRunes+3)
	assert.Contains(t, summary.Excerpts[0].Excerpt, "...")

	for _, e := range summary.Excerpts {
		assert.NotContains(t, e.Token, "agent")
	}
}

func TestBuildReactionHighlightsAndNoExperience(t *testing.T) {
	builder := NewBuilder(Config{})

	noExp := validResponse("agent-4", "I haven't dealt with this myself, sorry.")
	noExp.NoExperience = true

	reaction := validResponse("agent-2", "I'd add that the recovery took me longer than others describe.")
	reaction.Round = models.RoundReaction

	summary := builder.Build([]*models.AgentResponse{
		validResponse("agent-1", "Ice and rest for the first two days worked for me."),
		reaction,
		noExp,
	})

	require.Len(t, summary.ReactionHighlights, 1)
	assert.Contains(t, summary.ReactionHighlights[0], "recovery took me longer")
	assert.Equal(t, 1, summary.NoExperienceCount)
	assert.Equal(t, Disclaimer, summary.Disclaimer)
}

func TestBuildEmptyInput(t *testing.T) {
	builder := NewBuilder(Config{})

	summary := builder.Build(nil)

	require.NotNil(t, summary)
	assert.Empty(t, summary.ConsensusPoints)
	assert.Empty(t, summary.Excerpts)
	assert.Nil(t, summary.CostRange)
	assert.Equal(t, Disclaimer, summary.Disclaimer)
}
