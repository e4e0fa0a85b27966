// Package pipeline answers a question in three stages: a generator writes
// the SQL, an explainer dry-runs it and reports the cost, and after the user
// consents an executor runs it and narrates the rows.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/agent"
	"github.com/fwojciec/dataops/metrics"
	"github.com/fwojciec/dataops/prompt"
	"github.com/fwojciec/dataops/tools"
	"github.com/google/uuid"
)

// Event authors. AppName is also the application name sessions are created
// under.
const (
	AppName   = "GithubAnalysisAgent"
	Generator = "GithubQueryGeneratorAgent"
	Explainer = "GithubQueryExplainerAgent"
	Executor  = "GithubExecutorAgent"
)

// DeclinedText is emitted when the user does not approve the query.
const DeclinedText = "The query was not executed."

const defaultConsentTimeout = 10 * time.Minute

// QueryTools runs the two warehouse tools and returns both the typed value
// and the result sent to the model. *tools.Executor implements it.
type QueryTools interface {
	DryRun(ctx context.Context, sql string) (dataops.CostReport, *dataops.ToolResult, error)
	Query(ctx context.Context, sql string) (dataops.QueryResult, *dataops.ToolResult, error)
}

var _ QueryTools = (*tools.Executor)(nil)

// Config holds the dependencies of a [Pipeline].
type Config struct {
	Provider     dataops.Provider
	Tools        QueryTools
	Sessions     dataops.SessionService
	Gate         dataops.Gate
	Instructions prompt.Instructions

	GeneratorModel string // empty = provider default
	ToolModel      string // empty = provider default

	// ConsentTimeout bounds the wait for a decision. A request that times
	// out is declined. 0 = 10 minutes.
	ConsentTimeout time.Duration
	MaxTurns       int // per stage; 0 = agent default

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Validate checks required fields.
func (c *Config) Validate() error {
	var missing []string
	if c.Provider == nil {
		missing = append(missing, "provider")
	}
	if c.Tools == nil {
		missing = append(missing, "tools")
	}
	if c.Sessions == nil {
		missing = append(missing, "sessions")
	}
	if c.Gate == nil {
		missing = append(missing, "gate")
	}
	if len(missing) > 0 {
		return fmt.Errorf("pipeline: missing %s: %w", strings.Join(missing, ", "), dataops.ErrConfig)
	}
	return nil
}

// Pipeline runs invocations. It holds no per-invocation state and is safe
// for concurrent use as long as its dependencies are.
type Pipeline struct {
	cfg Config
	log *slog.Logger
}

// New creates a [Pipeline]. Empty instructions get the built-in fallbacks.
func New(cfg *Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *cfg
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.ConsentTimeout <= 0 {
		c.ConsentTimeout = defaultConsentTimeout
	}
	if c.Instructions.Generator == "" {
		c.Instructions.Generator = prompt.Fallback
	}
	return &Pipeline{cfg: c, log: c.Logger}, nil
}

// Sessions returns the session service the pipeline reads context from.
func (p *Pipeline) Sessions() dataops.SessionService { return p.cfg.Sessions }

// run is one invocation in flight.
type run struct {
	p     *Pipeline
	st    *dataops.State
	out   *emitter
	log   *slog.Logger
	turns []dataops.Turn
}

// Run answers one question. Events are passed to onEvent in order as they
// are produced. The returned state describes how far the invocation got; it
// is non-nil whenever the request was valid. A non-nil error means the
// invocation was aborted.
func (p *Pipeline) Run(ctx context.Context, req dataops.QueryRequest, onEvent func(dataops.Event)) (*dataops.State, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sess, err := p.cfg.Sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load session: %w", err)
	}
	if sess.UserID != req.UserID {
		return nil, fmt.Errorf("pipeline: load session %s: %w", req.SessionID, dataops.ErrSessionNotFound)
	}

	inv := p.cfg.NewID()
	r := &run{
		p:     p,
		st:    dataops.NewState(inv, sess.ID, req.Message),
		out:   &emitter{invocationID: inv, now: p.cfg.Now, fn: onEvent},
		log:   p.log.With("invocation", inv, "session", sess.ID),
		turns: sess.Turns,
	}
	r.log.Info("invocation started")

	answer, err := r.execute(ctx)
	if err != nil {
		metrics.InvocationsTotal.WithLabelValues("error").Inc()
		r.log.Error("invocation failed", "phase", r.st.Phase(), "error", err)
		return r.st, err
	}
	metrics.InvocationsTotal.WithLabelValues(string(r.st.Outcome)).Inc()
	r.log.Info("invocation finished", "outcome", r.st.Outcome)

	turn := dataops.Turn{Question: req.Message, SQL: r.st.SQLText, Answer: answer, Timestamp: p.cfg.Now()}
	if err := p.cfg.Sessions.AppendTurn(ctx, sess.ID, turn); err != nil {
		r.log.Warn("failed to record turn", "error", err)
	}
	return r.st, nil
}

// execute drives the state machine and returns the final narrated text.
func (r *run) execute(ctx context.Context) (string, error) {
	text, err := r.generate(ctx)
	if err != nil {
		return "", err
	}
	sql := ExtractSQL(text)
	if sql == "" {
		r.log.Info("no sql in generator output")
		r.st.Finish(dataops.OutcomeNoSQL)
		return text, nil
	}
	r.st.SQLText = sql
	if err := r.advance(dataops.PhaseExplaining); err != nil {
		return "", err
	}

	text, err = r.explain(ctx)
	if err != nil {
		return "", err
	}
	if !r.st.CostReport.Valid {
		r.st.Finish(dataops.OutcomeInvalid)
		return text, nil
	}
	if err := r.advance(dataops.PhaseAwaitingConsent); err != nil {
		return "", err
	}

	if err := r.consent(ctx); err != nil {
		return "", err
	}
	if r.st.Decision != dataops.DecisionApproved {
		r.out.emit(AppName, dataops.TextPart{Text: DeclinedText})
		r.st.Finish(dataops.OutcomeDeclined)
		return DeclinedText, nil
	}
	if err := r.advance(dataops.PhaseExecuting); err != nil {
		return "", err
	}

	text, err = r.executeSQL(ctx)
	if err != nil {
		return "", err
	}
	r.st.Finish(dataops.OutcomeExecuted)
	return text, nil
}

func (r *run) advance(to dataops.Phase) error {
	if err := r.st.Advance(to); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	r.log.Debug("phase changed", "phase", to)
	return nil
}

// generate runs stage 1 with the prior turns as context and returns the
// model's final text.
func (r *run) generate(ctx context.Context) (string, error) {
	t := &dataops.Transcript{SystemPrompt: r.p.cfg.Instructions.Generator}
	for _, turn := range r.turns {
		t.Messages = append(t.Messages,
			userText(turn.Question),
			dataops.AssistantMessage{Content: []dataops.ContentBlock{dataops.TextBlock{Text: turnAnswer(turn)}}},
		)
	}
	t.Messages = append(t.Messages, userText(r.st.Question))
	return r.stage(ctx, Generator, r.p.cfg.GeneratorModel, t, nil, nil)
}

// explain runs stage 2 and fills State.CostReport.
func (r *run) explain(ctx context.Context) (string, error) {
	sql := r.st.SQLText
	exec := &pinned{name: tools.ExplainQuery, sql: sql, call: func(ctx context.Context) (*dataops.ToolResult, error) {
		report, res, err := r.p.cfg.Tools.DryRun(ctx, sql)
		if err != nil {
			return nil, err
		}
		r.st.CostReport = &report
		return res, nil
	}}
	t := &dataops.Transcript{
		SystemPrompt: r.p.cfg.Instructions.Explainer,
		Messages:     []dataops.Message{userText(queryMessage(r.st.Question, sql, ""))},
	}
	text, err := r.stage(ctx, Explainer, r.p.cfg.ToolModel, t, []dataops.Tool{tools.Explain()}, exec)
	if err != nil {
		return "", err
	}
	if r.st.CostReport == nil {
		return "", fmt.Errorf("pipeline: %s: dry run did not complete", Explainer)
	}
	return text, nil
}

// executeSQL runs stage 3 and fills State.Result.
func (r *run) executeSQL(ctx context.Context) (string, error) {
	sql := r.st.SQLText
	exec := &pinned{name: tools.ExecuteSQL, sql: sql, call: func(ctx context.Context) (*dataops.ToolResult, error) {
		res, tr, err := r.p.cfg.Tools.Query(ctx, sql)
		if err != nil {
			return nil, err
		}
		r.st.Result = &res
		return tr, nil
	}}
	t := &dataops.Transcript{
		SystemPrompt: r.p.cfg.Instructions.Executor,
		Messages:     []dataops.Message{userText(queryMessage(r.st.Question, sql, "The user approved running this query."))},
	}
	text, err := r.stage(ctx, Executor, r.p.cfg.ToolModel, t, []dataops.Tool{tools.Execute()}, exec)
	if err != nil {
		return "", err
	}
	if r.st.Result == nil {
		return "", fmt.Errorf("pipeline: %s: query did not complete", Executor)
	}
	return text, nil
}

// stage runs the agent loop for one stage, forwarding every message as
// events. A tool stage whose model never called the pinned tool gets the
// call made on its behalf, followed by one more model turn to narrate it.
func (r *run) stage(ctx context.Context, name, model string, t *dataops.Transcript, ts []dataops.Tool, exec *pinned) (string, error) {
	start := time.Now()
	log := r.log.With("stage", name, "phase", r.st.Phase())
	log.Info("stage started")
	defer func() {
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	var last string
	opts := []agent.RunOption{
		agent.WithModel(model),
		agent.WithMessageHandler(func(m dataops.Message) {
			if am, ok := m.(dataops.AssistantMessage); ok {
				if s := strings.TrimSpace(am.Text()); s != "" {
					last = s
				}
			}
			r.out.message(name, m)
		}),
	}
	if r.p.cfg.MaxTurns > 0 {
		opts = append(opts, agent.WithMaxTurns(r.p.cfg.MaxTurns))
	}

	var executor dataops.ToolExecutor = noTools{}
	if exec != nil {
		executor = exec
	}
	loop := agent.New(r.p.cfg.Provider, executor)
	if err := loop.Run(ctx, t, ts, opts...); err != nil {
		return "", fmt.Errorf("pipeline: %s: %w", name, err)
	}

	if exec != nil && !exec.called() {
		log.Warn("model did not call the tool, calling it directly", "tool", exec.name)
		if err := r.forceCall(ctx, name, t, exec); err != nil {
			return "", err
		}
		if err := loop.Run(ctx, t, ts, opts...); err != nil {
			return "", fmt.Errorf("pipeline: %s: %w", name, err)
		}
	}
	log.Info("stage finished", "duration", time.Since(start))
	return last, nil
}

// forceCall runs the pinned tool outside the model and records the call and
// its result in both the transcript and the event stream.
func (r *run) forceCall(ctx context.Context, author string, t *dataops.Transcript, exec *pinned) error {
	args := map[string]any{"sql": exec.sql}
	call := dataops.ToolCallBlock{ID: "call_" + uuid.NewString(), Name: exec.name, Arguments: mustJSON(args)}
	calling := dataops.AssistantMessage{
		Content:    []dataops.ContentBlock{call},
		StopReason: dataops.StopToolUse,
		Timestamp:  r.p.cfg.Now(),
	}
	t.Messages = append(t.Messages, calling)
	r.out.message(author, calling)

	res, err := exec.run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: %s: %s: %w", author, exec.name, err)
	}
	tr := dataops.ToolResultMessage{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    res.Content,
		IsError:    res.IsError,
		Timestamp:  r.p.cfg.Now(),
	}
	t.Messages = append(t.Messages, tr)
	r.out.message(author, tr)
	return nil
}

// consent blocks on the gate and records the decision. A decision that does
// not arrive within the consent timeout counts as declined; cancellation of
// the invocation itself is an error. Requests the gate settles on its own
// get no prompt, only the decision marked as automatic.
func (r *run) consent(ctx context.Context) error {
	report := *r.st.CostReport
	req := dataops.ConsentRequest{
		InvocationID: r.st.InvocationID,
		SessionID:    r.st.SessionID,
		SQL:          r.st.SQLText,
		Cost:         report,
	}
	if s, ok := r.p.cfg.Gate.(Screener); ok {
		if d, settled := s.Screen(req); settled {
			r.log.Info("consent settled by gate", "bytes_processed", report.BytesProcessed, "decision", d)
			r.decide(d, true)
			return nil
		}
	}

	r.out.emit(AppName, dataops.ToolCallPart{
		ID:   "consent_" + r.st.InvocationID,
		Name: dataops.ConsentTool,
		Args: map[string]any{
			"sql":             r.st.SQLText,
			"bytes_processed": report.BytesProcessed,
		},
	})

	wait, cancel := context.WithTimeout(ctx, r.p.cfg.ConsentTimeout)
	defer cancel()
	r.log.Info("awaiting consent", "bytes_processed", report.BytesProcessed)
	d, err := r.p.cfg.Gate.Await(wait, req)
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("pipeline: awaiting consent: %w", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		r.log.Warn("consent timed out", "timeout", r.p.cfg.ConsentTimeout)
		d = dataops.DecisionDeclined
	case err != nil:
		return fmt.Errorf("pipeline: awaiting consent: %w", err)
	}
	r.decide(d, false)
	return nil
}

// decide records d and emits it. Anything but an approval is a decline.
func (r *run) decide(d dataops.Decision, auto bool) {
	if d != dataops.DecisionApproved {
		d = dataops.DecisionDeclined
	}
	r.st.Decision = d
	metrics.ConsentDecisionsTotal.WithLabelValues(d.String()).Inc()

	resp := map[string]any{"approved": d == dataops.DecisionApproved}
	if auto {
		resp["auto"] = true
	}
	r.out.emit(AppName, dataops.ToolResultPart{
		ID:       "consent_" + r.st.InvocationID,
		Name:     dataops.ConsentTool,
		Response: resp,
	})
}

type noTools struct{}

func (noTools) Execute(_ context.Context, name string, _ json.RawMessage) (*dataops.ToolResult, error) {
	return nil, fmt.Errorf("pipeline: %s: %w", name, dataops.ErrToolNotFound)
}

func userText(s string) dataops.UserMessage {
	return dataops.UserMessage{Content: []dataops.ContentBlock{dataops.TextBlock{Text: s}}}
}

func queryMessage(question, sql, note string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nQuery:\n```sql\n%s\n```", question, sql)
	if note != "" {
		b.WriteString("\n\n")
		b.WriteString(note)
	}
	return b.String()
}

func turnAnswer(t dataops.Turn) string {
	if t.SQL == "" {
		return t.Answer
	}
	return fmt.Sprintf("```sql\n%s\n```\n\n%s", t.SQL, t.Answer)
}
