// Package executor drives a planned traversal to completion: per node it
// invokes the connector's retrieval and masking capabilities, retries bounded
// failures, writes the result cache and appends the execution log. One
// execution context (Resources) is owned per request.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/privgraph/internal/connectors/querycfg"
	"github.com/vk/privgraph/internal/ctxlog"
	"github.com/vk/privgraph/internal/execlog"
	"github.com/vk/privgraph/internal/fieldref"
	"github.com/vk/privgraph/internal/graph"
	"github.com/vk/privgraph/internal/traversal"
)

// Options tune the engine's retry and caching behavior.
type Options struct {
	// RetryCount is the number of retries after the initial attempt.
	RetryCount int
	// RetryDelay is the pause before the first retry.
	RetryDelay time.Duration
	// RetryBackoff multiplies the delay after every retry.
	RetryBackoff float64
	// ResultTTL bounds the life of cached node results and identity seeds.
	ResultTTL time.Duration
	// RequestTimeout bounds one request's total execution. Zero disables it.
	RequestTimeout time.Duration
	// OnOutcome, when set, receives each node outcome as it is produced.
	OnOutcome func(Outcome)
}

// Engine executes privacy request graphs.
type Engine struct {
	opts Options
}

// New applies defaults and returns an engine.
func New(opts Options) *Engine {
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 7 * 24 * time.Hour
	}
	return &Engine{opts: opts}
}

// ValidationResult is the outcome of a dry run.
type ValidationResult struct {
	Traversable bool
	Message     string
}

// Validate performs graph construction and planning with null seed values.
// It is side-effect free: no store I/O, no log entries, no cache writes, so
// it is safe to call repeatedly.
func (e *Engine) Validate(ctx context.Context, datasets []graph.Dataset) ValidationResult {
	g, err := graph.Build(ctx, datasets...)
	if err != nil {
		return ValidationResult{Message: err.Error()}
	}
	if len(g.Identities) == 0 {
		return ValidationResult{Message: "no identity seed fields declared; traversal has no entry point"}
	}
	seeds := make(map[string]any, len(g.Identities))
	for attr := range g.Identities {
		seeds[attr] = nil
	}
	t, err := traversal.Plan(g, seeds)
	if err != nil {
		return ValidationResult{Message: err.Error()}
	}
	return ValidationResult{
		Traversable: true,
		Message:     fmt.Sprintf("traversable: %d nodes in %d layers", len(t.Order), len(t.Layers)),
	}
}

// Execute runs one request's graph to completion or terminal failure. On an
// unrecoverable node failure the request halts with that node marked error;
// outcomes for nodes already processed are still returned. Cancellation is
// checked only at node boundaries.
func (e *Engine) Execute(ctx context.Context, res *Resources, datasets []graph.Dataset, identities map[string]any) ([]Outcome, error) {
	if e.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RequestTimeout)
		defer cancel()
	}
	logger := ctxlog.FromContext(ctx).With("request_id", res.RequestID)
	ctx = ctxlog.WithLogger(ctx, logger)

	g, err := graph.Build(ctx, datasets...)
	if err != nil {
		return nil, err
	}
	plan, err := traversal.Plan(g, identities)
	if err != nil {
		return nil, err
	}
	logger.Info("traversal planned", "nodes", len(plan.Order), "layers", len(plan.Layers))

	if err := res.CacheIdentities(ctx, identities, e.opts.ResultTTL); err != nil {
		return nil, err
	}

	produced := make(map[fieldref.CollectionAddress][]querycfg.Row, len(plan.Order))
	var outcomes []Outcome
	emit := func(o Outcome) {
		outcomes = append(outcomes, o)
		if e.opts.OnOutcome != nil {
			e.opts.OnOutcome(o)
		}
	}

	for _, node := range plan.Order {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcome, rows, err := e.runNode(ctx, res, node, gatherInput(node, produced, identities))
		emit(outcome)
		if err != nil {
			logger.Error("node failed, halting request", "node", node.Address.String(), "error", err)
			return outcomes, err
		}
		produced[node.Address] = rows
	}

	logger.Info("request complete", "nodes", len(outcomes))
	return outcomes, nil
}

// ExportResults reads back every cached node result for the request, keyed by
// collection address, for the external report-assembly component.
func (e *Engine) ExportResults(ctx context.Context, res *Resources) (map[fieldref.CollectionAddress][]querycfg.Row, error) {
	return res.AllResults(ctx)
}

// runNode executes one node: started log, cached-or-retrieved rows with
// retries, cache write, optional masking, terminal log.
func (e *Engine) runNode(ctx context.Context, res *Resources, node *graph.Node, input map[string][]any) (Outcome, []querycfg.Row, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.Address.String())
	addr := node.Address
	outcome := Outcome{Address: addr}

	if err := res.log(ctx, addr, nil, execlog.ActionAccess, execlog.StatusStarted, ""); err != nil {
		return outcome, nil, err
	}

	conn, err := res.Connector(ctx, node.ConnectionKey)
	if err != nil {
		outcome.Status = execlog.StatusError
		outcome.Err = err
		_ = res.log(ctx, addr, nil, execlog.ActionAccess, execlog.StatusError, err.Error())
		return outcome, nil, err
	}

	// Resumed requests re-read still-cached node outputs instead of
	// re-querying, until the TTL lapses.
	rows, cached, err := res.CachedNodeRows(ctx, addr)
	if err != nil {
		outcome.Status = execlog.StatusError
		outcome.Err = err
		_ = res.log(ctx, addr, nil, execlog.ActionAccess, execlog.StatusError, err.Error())
		return outcome, nil, err
	}
	if cached {
		logger.Debug("node result served from cache", "rows", len(rows))
		outcome.FromCache = true
	} else {
		result := e.withRetries(ctx, res, addr, execlog.ActionAccess, func() NodeResult {
			r, err := conn.Retrieve(ctx, node, res.Policy, input)
			return classify(r, err)
		})
		if result.Err != nil {
			retErr := &RetrievalError{Address: addr, Attempts: e.opts.RetryCount + 1, Err: result.Err}
			outcome.Status = execlog.StatusError
			outcome.Err = retErr
			_ = res.log(ctx, addr, nil, execlog.ActionAccess, execlog.StatusError, retErr.Error())
			return outcome, nil, retErr
		}
		rows = result.Rows
		if err := res.CacheNodeRows(ctx, addr, rows, e.opts.ResultTTL); err != nil {
			outcome.Status = execlog.StatusError
			outcome.Err = err
			_ = res.log(ctx, addr, nil, execlog.ActionAccess, execlog.StatusError, err.Error())
			return outcome, nil, err
		}
	}
	outcome.RowCount = len(rows)

	// Empty result (no predicate constructible, or the query matched
	// nothing) is success with no affected fields, not an error.
	accessFields := []string{}
	if len(rows) > 0 {
		accessFields = node.FieldNames()
	}

	if res.Policy.RequiresErasure(node.Collection.Fields) && len(rows) > 0 {
		targets := res.Policy.ErasureTargetNames(node.Collection.Fields)
		if err := res.log(ctx, addr, targets, execlog.ActionErasure, execlog.StatusStarted, ""); err != nil {
			return outcome, nil, err
		}
		result := e.withRetries(ctx, res, addr, execlog.ActionErasure, func() NodeResult {
			n, err := conn.Mask(ctx, node, res.Policy, rows)
			outcome.MaskedCount = n
			return classify(nil, err)
		})
		if result.Err != nil {
			maskErr := &MaskingError{Address: addr, Attempts: e.opts.RetryCount + 1, Err: result.Err}
			outcome.Status = execlog.StatusError
			outcome.Err = maskErr
			_ = res.log(ctx, addr, targets, execlog.ActionErasure, execlog.StatusError, maskErr.Error())
			return outcome, nil, maskErr
		}
		if err := res.log(ctx, addr, targets, execlog.ActionErasure, execlog.StatusComplete,
			fmt.Sprintf("masked %d records", outcome.MaskedCount)); err != nil {
			return outcome, nil, err
		}
	}

	outcome.Status = execlog.StatusComplete
	if err := res.log(ctx, addr, accessFields, execlog.ActionAccess, execlog.StatusComplete,
		fmt.Sprintf("retrieved %d rows", len(rows))); err != nil {
		return outcome, nil, err
	}
	return outcome, rows, nil
}

// withRetries runs one node operation with a bounded retry budget. Every
// retry re-runs the identical compiled operation; a fatal result or an
// exhausted budget ends the loop.
func (e *Engine) withRetries(ctx context.Context, res *Resources, addr fieldref.CollectionAddress, action execlog.ActionType, attempt func() NodeResult) NodeResult {
	logger := ctxlog.FromContext(ctx).With("node", addr.String(), "action", string(action))
	delay := e.opts.RetryDelay
	var result NodeResult
	for i := 0; i <= e.opts.RetryCount; i++ {
		result = attempt()
		if result.Err == nil || !result.Retryable {
			return result
		}
		if i == e.opts.RetryCount {
			break
		}
		logger.Warn("node operation failed, retrying", "attempt", i+1, "error", result.Err)
		_ = res.log(ctx, addr, nil, action, execlog.StatusRetrying, result.Err.Error())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// In-flight attempts run to completion; cancellation lands here
			// between attempts and on node boundaries.
			return NodeResult{Err: ctx.Err()}
		}
		delay = time.Duration(float64(delay) * e.opts.RetryBackoff)
	}
	return result
}

// gatherInput assembles the per-field predicate values for a node: every
// inbound edge contributes the upstream rows' values for its source field,
// and seed fields contribute the caller-supplied identity values. An edge
// whose upstream produced zero rows contributes nothing but still counts as
// satisfied.
func gatherInput(node *graph.Node, produced map[fieldref.CollectionAddress][]querycfg.Row, identities map[string]any) map[string][]any {
	input := make(map[string][]any)
	for _, edge := range node.Incoming {
		if edge.SelfLoop() {
			continue
		}
		for _, row := range produced[edge.From.CollectionAddress] {
			if v, ok := row[edge.From.Field]; ok && v != nil {
				input[edge.To.Field] = append(input[edge.To.Field], v)
			}
		}
	}
	for fieldName, attr := range node.SeedFields {
		if v, ok := identities[attr]; ok && v != nil {
			input[fieldName] = append(input[fieldName], v)
		}
	}
	return input
}
