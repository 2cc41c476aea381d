package planner

import "canvasmirror/domain/plan"

// Result is the shared planner contract. Success with a nil Plan means
// there is nothing to do, which is a normal outcome (idempotent
// materialization, inbound event for an unmirrored entity). Errors mean
// no plan was produced and none should be executed.
type Result struct {
	Success  bool
	Plan     *plan.Plan
	Errors   []string
	Warnings []string
}

func failure(errs ...string) Result {
	return Result{Errors: errs}
}

func noOp(warnings ...string) Result {
	return Result{Success: true, Warnings: warnings}
}

func planned(p *plan.Plan, warnings ...string) Result {
	return Result{Success: true, Plan: p, Warnings: append(warnings, p.Warnings()...)}
}
