package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/baibhavbaidya/researchmind-backend/internal/logger"
	"github.com/baibhavbaidya/researchmind-backend/internal/progress"
	"github.com/baibhavbaidya/researchmind-backend/internal/retriever"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Retriever finds the sources a run starts from.
type Retriever interface {
	Retrieve(ctx context.Context, userID, query string, useDocuments bool) ([]retriever.Result, retriever.Outcome, error)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sink receives progress events in order. *progress.Emitter implements it.
type Sink interface {
	Send(ev progress.Event) bool
}

// StageObserver is told how long each stage took and whether it failed.
type StageObserver interface {
	ObserveStage(ctx context.Context, stage string, elapsed time.Duration, err error)
}

type Config struct {
	MaxSources     int
	Concurrency    int
	ClaimThreshold int
	Observer       StageObserver
}

// Pipeline runs research requests through the fixed stage table.
type Pipeline struct {
	retriever Retriever
	gen       Generator
	cfg       Config
}

type transition struct {
	stage   Stage
	run     stageFunc
	next    Stage
	started string
	done    func(State) (string, any)
}

var transitions = []transition{
	{
		stage: StageSearch, run: searchStage, next: StageSummarize,
		started: "Searching the web and your documents...",
		done: func(st State) (string, any) {
			return fmt.Sprintf("Found %d sources", len(st.RetainedResults)), map[string]any{"sources": len(st.RetainedResults)}
		},
	},
	{
		stage: StageSummarize, run: summarizeStage, next: StageCritique,
		started: "Summarizing sources...",
		done: func(st State) (string, any) {
			return fmt.Sprintf("Summarized %d sources", len(st.Summaries)), map[string]any{"summaries": len(st.Summaries)}
		},
	},
	{
		stage: StageCritique, run: critiqueStage, next: StageFactCheck,
		started: "Reviewing source reliability...",
		done: func(st State) (string, any) {
			return fmt.Sprintf("%d/%d sources passed critique", len(st.Summaries), len(st.Verdicts)),
				map[string]any{"reliable": len(st.Summaries), "reviewed": len(st.Verdicts)}
		},
	},
	{
		stage: StageFactCheck, run: factCheckStage, next: StageSynthesize,
		started: "Cross-checking claims across sources...",
		done: func(st State) (string, any) {
			counts := st.ClaimCounts()
			return fmt.Sprintf("Found %d key claims", len(st.Claims)), map[string]any{
				"claims":     len(st.Claims),
				"verified":   counts[ClaimVerified],
				"disputed":   counts[ClaimDisputed],
				"unresolved": counts[ClaimUnresolved],
			}
		},
	},
	{
		stage: StageSynthesize, run: synthesizeStage, next: StageDone,
		started: "Writing the final answer...",
		done: func(st State) (string, any) {
			return "Answer ready", map[string]any{"sources_cited": len(st.SourcesCited)}
		},
	},
}

func New(r Retriever, gen Generator, cfg Config) *Pipeline {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 7
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ClaimThreshold <= 0 {
		cfg.ClaimThreshold = 2
	}
	return &Pipeline{retriever: r, gen: gen, cfg: cfg}
}

func (p *Pipeline) runLogger(req Request, stage Stage) *slog.Logger {
	return logger.With("run_id", req.RunID, "user_id", req.UserID, "stage", stage.String())
}

// Run executes every stage in order, emitting a started and a done event per
// stage and a final complete or error event. On failure the partial state is
// discarded and the error is a *apperr.StageError naming the failed stage.
// Run does not close the sink.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (*State, error) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", req.RunID), attribute.Bool("use_documents", req.UseDocuments))

	emit := func(stage string, status progress.Status, msg string, data any) {
		sink.Send(progress.Event{RunID: req.RunID, Stage: stage, Status: status, Message: msg, Data: data})
	}

	st := newState(req)
	for _, t := range transitions {
		name := t.stage.String()
		log := p.runLogger(req, t.stage)
		emit(name, progress.StatusStarted, t.started, nil)

		next, err := p.step(ctx, t, req, st)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			err = apperr.StageFailed(name, apperr.FromContext(err))
			log.Error("Stage failed", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, name+" failed")
			emit(name, progress.StatusError, err.Error(), map[string]any{
				"error_code": apperr.Code(err),
				"cause":      apperr.Code(errors.Unwrap(err)),
			})
			return nil, err
		}

		if notes := next.Notes[len(st.Notes):]; len(notes) > 0 {
			for _, note := range notes {
				emit(name, progress.StatusDegraded, note, nil)
			}
		}
		msg, data := t.done(next)
		log.Info("Stage completed", "detail", msg)
		emit(name, progress.StatusDone, msg, data)

		next.Stage = t.next
		st = next
	}

	emit(StageDone.String(), progress.StatusComplete, "Research complete", st)
	return &st, nil
}

func (p *Pipeline) step(ctx context.Context, t transition, req Request, st State) (State, error) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline."+t.stage.String())
	defer span.End()

	start := time.Now()
	next, err := t.run(ctx, p, req, st)
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveStage(ctx, t.stage.String(), time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return next, err
}
