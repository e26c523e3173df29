// Package workflow coordinates queue processing across the highlight
// pipeline stages.
//
// The manager runs a pool of workers that claim ready jobs from the two
// scheduling lanes, execute the stage registered for the claimed status, and
// persist the resulting transition. Expedited work is drained ahead of
// standard work with bounded fairness so the standard lane is never starved.
// A heartbeat monitor stamps in-flight jobs and reclaims work abandoned by a
// crashed worker, and transient stage failures are retried with backoff
// before a job is marked failed.
package workflow
