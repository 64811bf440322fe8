package collect

import (
	"context"
	"fmt"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
	"github.com/shivpratapsingh111/adcollect/internal/platform/logger"
)

// recoverToFault is deferred directly at the top of every producer,
// worker pool, router, and status-reporter goroutine so a panic never
// takes down the process: it's logged, folded into rc's fault the same
// way any other link or stage error is, and, if errOut is non-nil, also
// surfaced as that goroutine's own return value. label identifies which
// goroutine panicked, for the log line and the fault reason.
func recoverToFault(ctx context.Context, rc *collect.RunContext, log *logger.Logger, label string, errOut *error) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("%s: panic: %v", label, r)
	log.Error(ctx, "panic recovered", "component", label, "panic", fmt.Sprint(r))
	rc.Fault(err.Error())
	if errOut != nil {
		*errOut = err
	}
}
