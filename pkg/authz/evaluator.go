// Package authz evaluates authorization requests against a project's
// compiled snapshot.
package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cedar-policy/cedar-go"

	"github.com/stratusmedia/cedrus/pkg/registry"
	"github.com/stratusmedia/cedrus/pkg/snapshot"
	"github.com/stratusmedia/cedrus/pkg/types"
)

// DefaultMaxBatchSize caps how many requests AuthorizeBatch evaluates at
// once, so a single batch call can't force an unbounded entity closure
// walk.
const DefaultMaxBatchSize = 100

// Request is one authorization question: can Principal perform Action on
// Resource, given Context.
type Request struct {
	Principal types.EntityUID
	Action    types.EntityUID
	Resource  types.EntityUID
	Context   types.RecordValue
}

// Decision is the answer to one Request.
type Decision struct {
	Allowed   bool
	PolicyIDs []types.PolicyID
	Errors    []string
}

// Evaluator answers authorization requests against the snapshots held in
// a Registry. Core.IsAllowed grants admin principals before consulting it;
// every other decision is made here.
type Evaluator struct {
	registry     *registry.Registry
	logger       *slog.Logger
	maxBatchSize int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the structured logger used for decision logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithMaxBatchSize overrides DefaultMaxBatchSize.
func WithMaxBatchSize(n int) Option {
	return func(e *Evaluator) { e.maxBatchSize = n }
}

// New returns an Evaluator backed by reg.
func New(reg *registry.Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry:     reg,
		logger:       slog.Default(),
		maxBatchSize: DefaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize evaluates a single request against projectID's current
// snapshot.
func (e *Evaluator) Authorize(ctx context.Context, projectID types.ProjectID, req Request) (Decision, error) {
	start := time.Now()

	snap := e.registry.Get(projectID)
	if snap == nil {
		return Decision{}, types.New(types.KindNoSuchProject, projectID.String())
	}

	closure := entityClosure(snap, req.Principal, req.Resource, contextEntityRefs(req.Context)...)
	decision := evaluateOne(snap.CedarPolicySet, closure, req)

	e.logger.Info("authorization decision",
		"project_id", projectID.String(),
		"principal", req.Principal.String(),
		"action", req.Action.String(),
		"resource", req.Resource.String(),
		"allowed", decision.Allowed,
		"policy_ids", decision.PolicyIDs,
		"duration_us", time.Since(start).Microseconds(),
	)

	return decision, nil
}

// AuthorizeBatch evaluates every request in reqs against projectID's
// current snapshot, preserving input order in the returned slice. Every
// request in the batch shares one entity closure computed over the union
// of their principals, resources, and context entity references, so a
// batch walks the parent graph
// once rather than once per request.
func (e *Evaluator) AuthorizeBatch(ctx context.Context, projectID types.ProjectID, reqs []Request) ([]Decision, error) {
	if len(reqs) > e.maxBatchSize {
		return nil, types.New(types.KindInvalidEntity, fmt.Sprintf("batch size %d exceeds maximum %d", len(reqs), e.maxBatchSize))
	}

	snap := e.registry.Get(projectID)
	if snap == nil {
		return nil, types.New(types.KindNoSuchProject, projectID.String())
	}

	seeds := make([]types.EntityUID, 0, len(reqs)*2)
	for _, r := range reqs {
		seeds = append(seeds, r.Principal, r.Resource)
		seeds = append(seeds, contextEntityRefs(r.Context)...)
	}
	closure := entityClosureMulti(snap, seeds)

	out := make([]Decision, len(reqs))
	for i, r := range reqs {
		out[i] = evaluateOne(snap.CedarPolicySet, closure, r)
	}
	return out, nil
}

// contextEntityRefs walks ctx recursively through SetValue/RecordValue,
// collecting every EntityValue leaf. Per spec.md §4.3 step 2, the entity
// closure seeds from principal and resource plus any entity references
// found in context, so a policy condition like `context.device in
// TrustedDevices` can resolve the device's parent chain.
func contextEntityRefs(ctx types.RecordValue) []types.EntityUID {
	var out []types.EntityUID
	var walk func(v types.AttrValue)
	walk = func(v types.AttrValue) {
		switch val := v.(type) {
		case types.EntityValue:
			out = append(out, types.EntityUID(val))
		case types.SetValue:
			for _, e := range val {
				walk(e)
			}
		case types.RecordValue:
			for _, e := range val {
				walk(e)
			}
		}
	}
	for _, v := range ctx {
		walk(v)
	}
	return out
}

// entityClosure returns the transitive closure of roots (the principal,
// the resource, and any entity references from the request context) over
// the project's parent graph: every entity reachable by following Parents
// edges, starting from those roots. A visited set guards
// against the cycles a malformed write path could otherwise loop on
// forever.
func entityClosure(snap *snapshot.Snapshot, roots ...types.EntityUID) cedar.EntityMap {
	return entityClosureMulti(snap, roots)
}

func entityClosureMulti(snap *snapshot.Snapshot, roots []types.EntityUID) cedar.EntityMap {
	visited := map[types.EntityUID]struct{}{}
	queue := append([]types.EntityUID{}, roots...)

	for len(queue) > 0 {
		uid := queue[0]
		queue = queue[1:]
		if _, seen := visited[uid]; seen {
			continue
		}
		visited[uid] = struct{}{}

		ent, ok := snap.Entities[uid]
		if !ok {
			continue
		}
		for parent := range ent.Parents {
			if _, seen := visited[parent]; !seen {
				queue = append(queue, parent)
			}
		}
	}

	out := cedar.EntityMap{}
	for uid := range visited {
		if ent, ok := snap.Entities[uid]; ok {
			out[snapshot.CedarEntityUID(uid)] = snapshot.CedarEntity(ent)
		}
	}
	return out
}

func evaluateOne(ps *cedar.PolicySet, entities cedar.EntityMap, req Request) Decision {
	contextMap := cedar.RecordMap{}
	for k, v := range req.Context {
		contextMap[k] = snapshot.CedarValue(v)
	}

	cedarReq := cedar.Request{
		Principal: snapshot.CedarEntityUID(req.Principal),
		Action:    snapshot.CedarEntityUID(req.Action),
		Resource:  snapshot.CedarEntityUID(req.Resource),
		Context:   cedar.NewRecord(contextMap),
	}

	decision, diag := cedar.Authorize(ps, entities, cedarReq)

	policyIDs := make([]types.PolicyID, len(diag.Reasons))
	for i, r := range diag.Reasons {
		policyIDs[i] = types.PolicyID(r.PolicyID)
	}

	var errs []string
	for _, e := range diag.Errors {
		errs = append(errs, fmt.Sprintf("%s: %s", e.PolicyID, e.Message))
	}

	return Decision{
		Allowed:   decision == cedar.Allow,
		PolicyIDs: policyIDs,
		Errors:    errs,
	}
}
