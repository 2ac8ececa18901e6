package pipeline

import (
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// priorityNice is the scheduling priority requested for a source task whose
// trigger.Spec.RealtimePriority is set, on the theory that a lower nice
// value makes the Go scheduler's underlying OS thread less likely to be
// preempted by the rest of the pipeline's normal-priority goroutines. This
// is best-effort: Go's runtime multiplexes goroutines over OS threads on
// its own schedule, so locking one goroutine to its own thread and raising
// that thread's nice value is the closest approximation of "priority
// worker pool" membership available without bypassing the Go scheduler.
const priorityNice = -10

// raisePriority locks the calling goroutine to its current OS thread and
// attempts to raise that thread's scheduling priority. It must be called
// from the goroutine that will run for the task's entire lifetime. The
// returned func undoes the thread lock only; it does not restore the
// original nice value, so once unlocked the thread returns to the runtime's
// pool still at the nice value set here.
func raisePriority(logger logrus.FieldLogger) func() {
	runtime.LockOSThread()
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, priorityNice); err != nil {
		logger.WithError(err).Debug("could not raise source task's thread priority, continuing at normal priority")
	}
	return runtime.UnlockOSThread
}
