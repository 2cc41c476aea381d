package plan

// FailureCategory tags why an execution failed, so callers can
// distinguish "retry after reacquiring the lock" from "this plan is
// permanently invalid".
type FailureCategory string

const (
	FailureLockViolation      FailureCategory = "lock_violation"
	FailurePrecondition       FailureCategory = "precondition_failure"
	FailureValidation         FailureCategory = "validation_failure"
	FailureMutation           FailureCategory = "mutation_failure"
	FailureForbiddenOperation FailureCategory = "forbidden_operation"
	FailureForbiddenRepair    FailureCategory = "forbidden_repair"
	FailureSync               FailureCategory = "sync_failure"
	FailureRollback           FailureCategory = "rollback_failure"
	FailureUnknown            FailureCategory = "unknown"
)
