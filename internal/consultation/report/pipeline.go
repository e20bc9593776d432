// internal/consultation/report/pipeline.go

// Package report turns the accepted response set of a consultation into a
// structured, de-identified summary. The rule-based stages are independent
// extractors; the optional generative summarizer may replace some of their
// output but never the report's shape.
package report

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/textsim"
)

// Disclaimer is fixed and non-overridable; every report carries it.
const Disclaimer = "This report aggregates anecdotal experiences shared by peer agents. " +
	"It is not medical advice. Consult a qualified clinician before acting on anything in it."

const (
	// DefaultConsensusThreshold is looser than duplicate detection because
	// paraphrase across distinct agents is expected.
	DefaultConsensusThreshold = 0.35

	// DefaultCostCeiling discards cost ranges dominated by garbage values.
	DefaultCostCeiling = 1_000_000

	maxPointsPerResponse  = 3
	maxConsensusPoints    = 5
	maxDivergences        = 3
	maxChecklistItems     = 5
	maxReactionHighlights = 3
	excerptRunes          = 160
)

// Config tunes the rule-based pipeline.
type Config struct {
	ConsensusThreshold float64
	CostCeiling        float64
}

func (c Config) withDefaults() Config {
	if c.ConsensusThreshold <= 0 {
		c.ConsensusThreshold = DefaultConsensusThreshold
	}
	if c.CostCeiling <= 0 {
		c.CostCeiling = DefaultCostCeiling
	}
	return c
}

// Builder assembles report summaries from accepted responses.
type Builder struct {
	config Config
}

// NewBuilder creates a Builder, applying defaults for unset config values.
func NewBuilder(config Config) *Builder {
	return &Builder{config: config.withDefaults()}
}

// Build synthesizes the summary from all valid responses of a consultation.
// Substantive initial answers feed the extractors; valid reaction answers
// become reaction highlights. The summary is rebuilt in full, never
// partially written.
func (b *Builder) Build(responses []*models.AgentResponse) *models.ReportSummary {
	var substantive []*models.AgentResponse
	var reactions []*models.AgentResponse
	noExperience := 0

	for _, resp := range responses {
		if !resp.Valid {
			continue
		}
		if resp.NoExperience {
			noExperience++
			continue
		}
		switch resp.Round {
		case models.RoundReaction:
			reactions = append(reactions, resp)
		default:
			substantive = append(substantive, resp)
		}
	}

	summary := &models.ReportSummary{
		ConsensusPoints:   b.consensus(substantive),
		Divergences:       divergences(substantive),
		Preparation:       extractChecklist(substantive, preparationKeywords),
		DoctorReferrals:   extractChecklist(substantive, referralKeywords),
		CostRange:         b.costRange(substantive),
		Disclaimer:        Disclaimer,
		Excerpts:          excerpts(responses),
		NoExperienceCount: noExperience,
	}

	for i, resp := range reactions {
		if i == maxReactionHighlights {
			break
		}
		summary.ReactionHighlights = append(summary.ReactionHighlights, textsim.Truncate(resp.Text, excerptRunes))
	}

	return summary
}

// keyPoints splits one response into up to three candidate statements.
func keyPoints(text string) []string {
	sentences := textsim.SplitSentences(text)
	if len(sentences) > maxPointsPerResponse {
		sentences = sentences[:maxPointsPerResponse]
	}
	return sentences
}

type cluster struct {
	members []string
	agents  map[string]struct{}
}

// consensus bigram-Jaccard clusters candidate points across distinct agents
// and keeps clusters supported by at least two of them.
func (b *Builder) consensus(responses []*models.AgentResponse) []models.ConsensusPoint {
	totalAgents := len(responses)

	var clusters []*cluster
	for _, resp := range responses {
		for _, point := range keyPoints(resp.Text) {
			placed := false
			for _, cl := range clusters {
				if textsim.Similarity(point, cl.members[0]) >= b.config.ConsensusThreshold {
					cl.members = append(cl.members, point)
					cl.agents[resp.AgentID] = struct{}{}
					placed = true
					break
				}
			}
			if !placed {
				clusters = append(clusters, &cluster{
					members: []string{point},
					agents:  map[string]struct{}{resp.AgentID: {}},
				})
			}
		}
	}

	var points []models.ConsensusPoint
	for _, cl := range clusters {
		if len(cl.agents) < 2 {
			continue
		}
		// Representative text is the longest member.
		rep := cl.members[0]
		for _, m := range cl.members[1:] {
			if len(m) > len(rep) {
				rep = m
			}
		}
		points = append(points, models.ConsensusPoint{
			Text:        rep,
			AgentCount:  len(cl.agents),
			TotalAgents: totalAgents,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].AgentCount > points[j].AgentCount
	})
	if len(points) > maxConsensusPoints {
		points = points[:maxConsensusPoints]
	}
	return points
}

// antonymPairs are the opposing keyword pairs scanned for divergences. The
// negative form is checked first since it usually contains the positive one.
var antonymPairs = []struct {
	negative string
	positive string
}{
	{"do not recommend", "recommend"},
	{"don't recommend", "recommend"},
	{"did not work", "worked"},
	{"didn't work", "worked"},
	{"not effective", "effective"},
	{"made it worse", "improved"},
	{"would avoid", "would try"},
}

// divergences finds sentence pairs of opposite polarity across responses.
func divergences(responses []*models.AgentResponse) []models.DivergencePair {
	var pairs []models.DivergencePair

	for _, pair := range antonymPairs {
		if len(pairs) == maxDivergences {
			break
		}

		var positives, negatives []string
		for _, resp := range responses {
			for _, sentence := range textsim.SplitSentences(resp.Text) {
				lower := strings.ToLower(sentence)
				switch {
				case strings.Contains(lower, pair.negative):
					negatives = append(negatives, sentence)
				case strings.Contains(lower, pair.positive):
					positives = append(positives, sentence)
				}
			}
		}

		if len(positives) > 0 && len(negatives) > 0 {
			pairs = append(pairs, models.DivergencePair{
				Positive: positives[0],
				Negative: negatives[0],
				Ratio:    float64(len(positives)) / float64(len(positives)+len(negatives)),
			})
		}
	}
	return pairs
}

var preparationKeywords = []string{
	"prepare", "before the visit", "beforehand", "bring", "fasting",
	"wear", "write down", "avoid eating",
}

var referralKeywords = []string{
	"see a doctor", "see a specialist", "consult a doctor", "get checked",
	"emergency", "don't delay", "medical attention",
}

// extractChecklist pulls keyword-triggered sentences, deduplicated by
// normalized text, capped.
func extractChecklist(responses []*models.AgentResponse, keywords []string) []string {
	var items []string
	seen := make(map[string]struct{})

	for _, resp := range responses {
		for _, sentence := range textsim.SplitSentences(resp.Text) {
			lower := strings.ToLower(sentence)
			for _, kw := range keywords {
				if !strings.Contains(lower, kw) {
					continue
				}
				norm := textsim.Normalize(sentence)
				if _, dup := seen[norm]; !dup {
					seen[norm] = struct{}{}
					items = append(items, sentence)
				}
				break
			}
			if len(items) == maxChecklistItems {
				return items
			}
		}
	}
	return items
}

// costPatterns match currency-like mentions: "$300", "$1,200.50",
// "250 dollars", "90 usd".
var costPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]+)?)`),
	regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s?(?:dollars|usd)`),
}

// costRange aggregates the min/max of currency mentions, discarding the
// whole range when the maximum exceeds the sanity ceiling.
func (b *Builder) costRange(responses []*models.AgentResponse) *models.CostRange {
	var amounts []float64
	for _, resp := range responses {
		for _, pattern := range costPatterns {
			for _, match := range pattern.FindAllStringSubmatch(resp.Text, -1) {
				raw := strings.ReplaceAll(match[1], ",", "")
				if amount, err := strconv.ParseFloat(raw, 64); err == nil {
					amounts = append(amounts, amount)
				}
			}
		}
	}
	if len(amounts) == 0 {
		return nil
	}

	min, max := amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < min {
			min = a
		}
		if a > max {
			max = a
		}
	}
	if max > b.config.CostCeiling {
		return nil
	}
	return &models.CostRange{Min: min, Max: max}
}

// excerpts builds the de-identified per-agent view over every valid row,
// tokens assigned by response order.
func excerpts(responses []*models.AgentResponse) []models.ResponseExcerpt {
	var out []models.ResponseExcerpt
	for _, resp := range responses {
		if !resp.Valid {
			continue
		}
		out = append(out, models.ResponseExcerpt{
			Token:        redactionToken(len(out)),
			Round:        resp.Round,
			Excerpt:      textsim.Truncate(resp.Text, excerptRunes),
			NoExperience: resp.NoExperience,
		})
	}
	return out
}

func redactionToken(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < len(letters) {
		return "Consultant " + string(letters[i])
	}
	return "Consultant " + strconv.Itoa(i+1)
}
