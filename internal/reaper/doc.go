// Package reaper runs retention sweeps on a cron schedule.
//
// Each run trims both tiers: the memory buffer by its max age and the
// durable store by its retention window. Sweep failures are logged and
// retried on the next run, never fatal.
package reaper
