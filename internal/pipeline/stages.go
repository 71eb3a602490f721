package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoSources         = errors.New("no sources found for the query")
	ErrNoSummaries       = errors.New("no source could be summarized")
	ErrNoReliableSources = errors.New("every source was rejected as unreliable")
	ErrEmptyAnswer       = errors.New("synthesis produced an empty answer")
)

const (
	minContentChars = 50
	maxContentChars = 2000
	// critiqueUnavailable is the verdict reason when a critique could not be produced.
	critiqueUnavailable = "critique unavailable"
)

// stageFunc advances st by one stage.
type stageFunc func(ctx context.Context, p *Pipeline, req Request, st State) (State, error)

func searchStage(ctx context.Context, p *Pipeline, req Request, st State) (State, error) {
	results, outcome, err := p.retriever.Retrieve(ctx, req.UserID, req.Query, req.UseDocuments)
	if err != nil {
		return st, err
	}
	if len(results) > p.cfg.MaxSources {
		results = results[:p.cfg.MaxSources]
	}
	st.RetainedResults = results
	st.Notes = append(st.Notes, outcome.Notes...)
	if len(results) == 0 {
		return st, ErrNoSources
	}
	return st, nil
}

func summarizeStage(ctx context.Context, p *Pipeline, req Request, st State) (State, error) {
	log := p.runLogger(req, StageSummarize)
	out := make([]*Summary, len(st.RetainedResults))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, res := range st.RetainedResults {
		content := strings.TrimSpace(res.RawText)
		if len([]rune(content)) < minContentChars {
			log.Debug("Skipping short source", "source", res.SourceLabel)
			continue
		}
		g.Go(func() error {
			text, err := p.gen.Generate(gctx, summarizePrompt(req.Query, truncateRunes(content, maxContentChars)))
			if err == nil && strings.TrimSpace(text) == "" {
				err = fmt.Errorf("%w: empty summary", apperr.ErrUnavailable)
			}
			if err != nil {
				log.Warn("Dropping source after summarize failure", "source", res.SourceLabel, "error", err)
				return nil
			}
			out[i] = &Summary{
				SourceLabel:   res.SourceLabel,
				Text:          strings.TrimSpace(text),
				URLOrFilename: res.URLOrFilename,
				Title:         res.Title,
				Origin:        res.Origin,
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return st, err
	}

	st.Summaries = st.Summaries[:0]
	for _, s := range out {
		if s != nil {
			st.Summaries = append(st.Summaries, *s)
		}
	}
	if dropped := len(st.RetainedResults) - len(st.Summaries); dropped > 0 {
		st.Notes = append(st.Notes, fmt.Sprintf("%d of %d sources were skipped or could not be summarized.", dropped, len(st.RetainedResults)))
	}
	if len(st.Summaries) == 0 {
		return st, ErrNoSummaries
	}
	return st, nil
}

func critiqueStage(ctx context.Context, p *Pipeline, req Request, st State) (State, error) {
	log := p.runLogger(req, StageCritique)
	verdicts := make([]Verdict, len(st.Summaries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, sum := range st.Summaries {
		g.Go(func() error {
			v := Verdict{SourceLabel: sum.SourceLabel, Keep: true, Reason: critiqueUnavailable, Confidence: ConfidenceMedium}
			text, err := p.gen.Generate(gctx, critiquePrompt(req.Query, sum.Text))
			if err != nil {
				log.Warn("Critique failed, keeping source", "source", sum.SourceLabel, "error", err)
			} else if c, ok := parseCritique(text); !ok {
				log.Warn("Critique unparsable, keeping source", "source", sum.SourceLabel)
			} else {
				v = Verdict{
					SourceLabel: sum.SourceLabel,
					Keep:        c.rating != "UNRELIABLE",
					Reason:      c.issues,
					Confidence:  c.confidence,
					Rating:      c.rating,
				}
			}
			verdicts[i] = v
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return st, err
	}

	st.Verdicts = verdicts
	kept := make([]Summary, 0, len(st.Summaries))
	for i, sum := range st.Summaries {
		if !verdicts[i].Keep {
			continue
		}
		sum.Confidence = verdicts[i].Confidence
		kept = append(kept, sum)
	}
	if rejected := len(st.Summaries) - len(kept); rejected > 0 {
		st.Notes = append(st.Notes, fmt.Sprintf("%d sources were rejected as unreliable.", rejected))
	}
	st.Summaries = kept
	if len(kept) == 0 {
		return st, ErrNoReliableSources
	}
	return st, nil
}

func factCheckStage(ctx context.Context, p *Pipeline, req Request, st State) (State, error) {
	log := p.runLogger(req, StageFactCheck)
	perSource := make([][]extractedClaim, len(st.Summaries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, sum := range st.Summaries {
		g.Go(func() error {
			text, err := p.gen.Generate(gctx, claimsPrompt(req.Query, sum.SourceLabel, sum.Text))
			if err != nil {
				log.Warn("Claim extraction failed, omitting source claims", "source", sum.SourceLabel, "error", err)
				return nil
			}
			perSource[i] = parseClaims(text)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return st, err
	}

	var claims []sourcedClaim
	missing := 0
	for i, extracted := range perSource {
		if extracted == nil {
			missing++
		}
		for _, c := range extracted {
			claims = append(claims, sourcedClaim{label: st.Summaries[i].SourceLabel, extractedClaim: c})
		}
	}
	if missing > 0 {
		st.Notes = append(st.Notes, fmt.Sprintf("Claims from %d sources could not be extracted.", missing))
	}
	st.Claims = classifyClaims(claims, p.cfg.ClaimThreshold)
	return st, nil
}

func synthesizeStage(ctx context.Context, p *Pipeline, req Request, st State) (State, error) {
	answer, err := p.gen.Generate(ctx, synthesizePrompt(req.Query, st.Summaries, st.Claims))
	if err != nil {
		return st, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return st, fmt.Errorf("%w: %w", apperr.ErrUnavailable, ErrEmptyAnswer)
	}

	surviving := make(map[string]bool, len(st.Summaries))
	for _, s := range st.Summaries {
		surviving[s.SourceLabel] = true
	}
	cited := map[string]bool{}
	for _, label := range citedLabels(answer) {
		if surviving[label] {
			cited[label] = true
		}
	}

	st.SourcesCited = st.SourcesCited[:0]
	for _, s := range st.Summaries {
		if len(cited) == 0 || cited[s.SourceLabel] {
			st.SourcesCited = append(st.SourcesCited, s.SourceLabel)
		}
	}
	st.FinalAnswer = answer
	return st, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
