// Package schedule is the recurring reminder scheduling and dispatch core.
//
// Three pieces, wired by Service:
//   - Registry: bookkeeping of armed jobs, one cancellable daily wall-clock
//     alarm per task id, replace-not-stack.
//   - Dispatcher: reacts to a job firing; re-reads live task state from the
//     store, deduplicates via a fired-marker set, and fans the notification
//     out to the sink and side channels.
//   - Service: the facade the web layer calls (Start, LoadAll, ScheduleTask,
//     CancelTask, RunNow). Its operations never propagate errors to the CRUD
//     path; they log and continue.
//
// All wall-clock arithmetic happens in the single configured time zone. The
// clock is injectable so tests drive firing deterministically.
package schedule
