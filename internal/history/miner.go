// Package history mines a trainee's recent evaluations into a struggle
// profile: the weak areas that drive the next practice assignment.
//
// A profile is ephemeral. It is built per matching request from a single
// point-in-time snapshot of the evaluation history and discarded afterwards;
// nothing here is persisted or shared between requests.
package history

import (
	"strings"

	"github.com/kalambet/preceptor/internal/scoring"
	"github.com/kalambet/preceptor/internal/storage"
)

const (
	maxRecentCases = 10
	maxKeywords    = 10
	maxWeakHits    = 10
	maxTexts       = 5

	// Competency scores below this are considered weak.
	weakCompetencyThreshold = 70
)

// concernLexicon holds the fixed phrases scanned for in evaluator comments.
// On a match the lexicon phrase itself becomes a struggling keyword, not the
// surrounding sentence.
var concernLexicon = []string{
	"needs improvement",
	"struggled",
	"difficulty",
	"challenge",
	"concern",
	"should focus",
}

// WeakHit records one weak score: which metric, what it scored, and on which
// case type.
type WeakHit struct {
	Metric string `json:"metric"`
	Score  int    `json:"score"`
	Case   string `json:"case"`
}

// StruggleProfile summarizes a trainee's recent weak areas. All lists are
// capped and deduplicated; RecentCases is most-recent-first.
type StruggleProfile struct {
	RecentCases        []string  `json:"recent_cases"`
	StrugglingKeywords []string  `json:"struggling_keywords"`
	WeakCompetencyHits []WeakHit `json:"weak_competency_hits"`
	WeakBehaviorHits   []WeakHit `json:"weak_behavior_hits"`
	FocusTexts         []string  `json:"focus_texts"`
	CommentTexts       []string  `json:"comment_texts"`
}

// Empty reports whether mining found nothing at all.
func (p StruggleProfile) Empty() bool {
	return len(p.RecentCases) == 0 &&
		len(p.StrugglingKeywords) == 0 &&
		len(p.WeakCompetencyHits) == 0 &&
		len(p.WeakBehaviorHits) == 0 &&
		len(p.FocusTexts) == 0 &&
		len(p.CommentTexts) == 0
}

// Mine builds a StruggleProfile from up to the 10 most-recent evaluations,
// already sorted newest-first by the caller. Records with missing score
// fields contribute whatever fields they do have.
func Mine(records []storage.EvaluationRecord) StruggleProfile {
	var p StruggleProfile
	if len(records) > maxRecentCases {
		records = records[:maxRecentCases]
	}

	for _, rec := range records {
		if rec.CaseType != "" && len(p.RecentCases) < maxRecentCases && !containsFold(p.RecentCases, rec.CaseType) {
			p.RecentCases = append(p.RecentCases, rec.CaseType)
		}
		if strings.TrimSpace(rec.FocusAreas) != "" && len(p.FocusTexts) < maxTexts {
			p.FocusTexts = append(p.FocusTexts, rec.FocusAreas)
		}
		if strings.TrimSpace(rec.Comments) != "" && len(p.CommentTexts) < maxTexts {
			p.CommentTexts = append(p.CommentTexts, rec.Comments)
		}

		for i, score := range rec.Competencies {
			if i >= scoring.NumCompetencies || len(p.WeakCompetencyHits) >= maxWeakHits {
				break
			}
			if score < weakCompetencyThreshold {
				p.WeakCompetencyHits = append(p.WeakCompetencyHits, WeakHit{
					Metric: scoring.CompetencyLabels[i],
					Score:  score,
					Case:   rec.CaseType,
				})
			}
		}

		for i, score := range rec.Behaviors {
			if i >= scoring.NumBehaviors || len(p.WeakBehaviorHits) >= maxWeakHits {
				break
			}
			if score > scoring.NotApplicable && score < 3 {
				p.WeakBehaviorHits = append(p.WeakBehaviorHits, WeakHit{
					Metric: scoring.BehaviorLabels[i],
					Score:  score,
					Case:   rec.CaseType,
				})
			}
		}
	}

	p.StrugglingKeywords = mineKeywords(p.FocusTexts, p.CommentTexts)
	return p
}

// mineKeywords splits focus areas on semicolons and scans comments for the
// concern lexicon. Results are lowercased, deduplicated, and capped.
func mineKeywords(focusTexts, commentTexts []string) []string {
	var keywords []string

	add := func(kw string) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || len(keywords) >= maxKeywords {
			return
		}
		for _, existing := range keywords {
			if existing == kw {
				return
			}
		}
		keywords = append(keywords, kw)
	}

	for _, text := range focusTexts {
		for _, part := range strings.Split(text, ";") {
			add(part)
		}
	}

	for _, text := range commentTexts {
		lowered := strings.ToLower(text)
		for _, phrase := range concernLexicon {
			if strings.Contains(lowered, phrase) {
				add(phrase)
			}
		}
	}

	return keywords
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
