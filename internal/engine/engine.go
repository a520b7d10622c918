// Package engine implements the turn routing graph: classify the query
// against the taxonomy, decide between knowledge search, clarification and
// human escalation, and compose the turn's reply.
//
// The graph is a fixed finite-state machine, not a generic workflow engine.
// One call to ProcessTurn makes one synchronous pass; no node runs
// concurrently with another and no node fans out. All conversation state
// travels in and out as an explicit TurnState value owned by the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-ai/support-engine/internal/llm"
	"github.com/helpdesk-ai/support-engine/internal/model"
	"github.com/helpdesk-ai/support-engine/pkg/logger"
	"github.com/helpdesk-ai/support-engine/pkg/metrics"
)

// ErrBackendsUnavailable is returned when both the classification service and
// the retrieval backend are unreachable. It is the only failure surfaced to
// the caller as a hard error; everything else degrades to a safe route.
var ErrBackendsUnavailable = errors.New("classification service and retrieval backend unavailable")

// HistoryReader loads the ordered turn history for a conversation.
// Unknown conversations yield an empty history, not an error.
type HistoryReader interface {
	Turns(ctx context.Context, conversationID string) ([]model.Turn, error)
}

// TaxonomyProvider exposes the current topic/subtopic/tag vocabulary.
type TaxonomyProvider interface {
	Snapshot(ctx context.Context) (model.TaxonomySnapshot, error)
}

// Searcher is the vector retrieval backend.
type Searcher interface {
	Search(ctx context.Context, query string, filter model.FilterExpr, k int) ([]model.Passage, error)
}

// Pinger is optionally implemented by searchers that can report liveness.
// It backs the total-outage check behind ErrBackendsUnavailable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dispatcher delivers escalation notifications to human queues.
// Delivery is fire-and-forget; failures are logged and never block the reply.
type Dispatcher interface {
	Notify(ctx context.Context, target model.EscalationTarget, conversationID, summary string) error
}

// Options tunes the routing graph.
type Options struct {
	// RelevanceThreshold is the maximum similarity distance for a passage to
	// count as relevant. Passages at or above it are discarded.
	RelevanceThreshold float64

	// TopK is the number of candidates requested per cascade tier.
	TopK int

	// ClarificationLimit is the hard ceiling on clarification attempts
	// before a conversation is escalated unconditionally.
	ClarificationLimit int

	ClassifierModel string
	GenerationModel string
}

func (o Options) withDefaults() Options {
	if o.RelevanceThreshold <= 0 {
		o.RelevanceThreshold = 0.45
	}
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.ClarificationLimit <= 0 {
		o.ClarificationLimit = 2
	}
	return o
}

// Result is the outcome of one pass through the routing graph. The caller
// persists State atomically and delivers Reply; on a hard error neither is
// applied.
type Result struct {
	Reply      string
	Decision   model.RoutingDecision
	State      model.TurnState
	Escalation *model.EscalationTarget
}

// Engine executes the routing graph.
type Engine struct {
	history    HistoryReader
	taxonomy   TaxonomyProvider
	llm        llm.Client
	searcher   Searcher
	dispatcher Dispatcher
	opts       Options
	logger     *logger.Logger
}

// New creates a routing engine.
func New(
	history HistoryReader,
	taxonomy TaxonomyProvider,
	llmClient llm.Client,
	searcher Searcher,
	dispatcher Dispatcher,
	opts Options,
	log *logger.Logger,
) *Engine {
	return &Engine{
		history:    history,
		taxonomy:   taxonomy,
		llm:        llmClient,
		searcher:   searcher,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
		logger:     log,
	}
}

// node is a named state of the routing graph.
type node int

const (
	nodeAssemble node = iota
	nodeInterpret
	nodeRoute
	nodeRewrite
	nodeRetrieve
	nodePostRoute
	nodeRespond
	nodeClarify
	nodeEscalate
	nodeDone
)

func (n node) String() string {
	switch n {
	case nodeAssemble:
		return "assemble"
	case nodeInterpret:
		return "interpret"
	case nodeRoute:
		return "route"
	case nodeRewrite:
		return "rewrite"
	case nodeRetrieve:
		return "retrieve"
	case nodePostRoute:
		return "postroute"
	case nodeRespond:
		return "respond"
	case nodeClarify:
		return "clarify"
	case nodeEscalate:
		return "escalate"
	case nodeDone:
		return "done"
	default:
		return "unknown"
	}
}

// pass carries the scratch state for one turn through the graph. It lives for
// a single invocation; nothing in it is shared or persisted.
type pass struct {
	conversationID string
	userText       string
	prior          model.TurnState

	history  []model.Turn
	taxonomy model.TaxonomySnapshot

	interp    interpretation
	rewritten string
	passages  []model.Passage

	result *Result
}

// ProcessTurn runs one user utterance through the routing graph and returns
// the reply plus the new session state. The input state is treated as an
// immutable snapshot; the caller must serialize turns per conversation and
// apply the returned state atomically.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, userText string, prior model.TurnState) (*Result, error) {
	start := time.Now()
	log := e.logger.WithConversation(conversationID)

	p := &pass{
		conversationID: conversationID,
		userText:       userText,
		prior:          prior,
	}

	current := nodeAssemble
	for current != nodeDone {
		log.Debug("entering node", zap.Stringer("node", current))
		next, err := e.step(ctx, current, p)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", current, err)
		}
		current = next
	}

	metrics.RecordTurn(string(p.result.Decision), time.Since(start).Seconds())
	log.Info("turn processed",
		zap.String("decision", string(p.result.Decision)),
		zap.String("topic", p.result.State.CurrentTopic),
		zap.Int("clarification_attempts", p.result.State.ClarificationAttempts),
		zap.Duration("duration", time.Since(start)),
	)

	return p.result, nil
}

// step dispatches one typed transition. All transitions of the graph are
// enumerated here.
func (e *Engine) step(ctx context.Context, n node, p *pass) (node, error) {
	switch n {
	case nodeAssemble:
		return e.runAssemble(ctx, p)
	case nodeInterpret:
		return e.runInterpret(ctx, p)
	case nodeRoute:
		return e.runRoute(p)
	case nodeRewrite:
		return e.runRewrite(ctx, p)
	case nodeRetrieve:
		return e.runRetrieve(ctx, p)
	case nodePostRoute:
		return e.runPostRoute(p)
	case nodeRespond:
		return e.runRespond(ctx, p)
	case nodeClarify:
		return e.runClarify(p)
	case nodeEscalate:
		return e.runEscalate(ctx, p)
	default:
		return nodeDone, fmt.Errorf("unknown graph state %d", n)
	}
}

// backendsDown reports total backend unavailability: the classification call
// already failed and the retrieval backend does not answer either.
func (e *Engine) backendsDown(ctx context.Context) bool {
	pinger, ok := e.searcher.(Pinger)
	if !ok {
		return false
	}
	return pinger.Ping(ctx) != nil
}

// nextState derives the outgoing TurnState from the interpretation, carrying
// the clarification counter unchanged unless a node overrides it.
func (p *pass) nextState(locked bool) model.TurnState {
	return model.TurnState{
		Version:               p.prior.Version + 1,
		CurrentTopic:          p.interp.Topic,
		CurrentSubtopic:       p.interp.Subtopic,
		Route:                 p.interp.Route,
		Confidence:            p.interp.Confidence,
		TopicLocked:           locked,
		ClarificationAttempts: p.prior.ClarificationAttempts,
	}
}
