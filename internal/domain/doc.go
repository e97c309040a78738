// Package domain holds the data model shared by the verification engine:
// gridded fields and target grids, event thresholds, contingency counts,
// metric requests, task plans and result rows.
//
// # Fields and Grids
//
// A [Field] carries three arrays of one shape: values, latitude and
// longitude. A [Grid] carries only coordinates and is the target of
// reconciliation. Both are built through constructors that reject shape
// mismatches with [ErrInputShape].
//
// # Tasks
//
// A [Task] is one (valid date, lead hours, member) triple. [Plan.Tasks]
// enumerates dates outer, leads middle, members inner; that order is the
// row order of ordered output. In ensemble mode members are read together
// inside one task and the member is [NoMember].
//
// # Metric Requests
//
// A [MetricRequest] fixes the output column order. Requests are parsed from
// a comma-separated string:
//
//	rmse,gss:thr=30:radius=2,fss:fthr=30:rthr=25:window=5,reliability:thr=0.5:bins=10
//
// Keys: thr (both thresholds), fthr, rthr, radius, window, bins, and prob
// (brier only: binary, raw, sigmoid or softmax). Thresholds must be finite.
//
// # Failures
//
// Undefined metrics (zero denominators, no events) are NaN values, not
// errors. Task failures wrap [ErrDataUnavailable] or [ErrInputShape];
// malformed requests wrap [ErrConfiguration] and stop a run before any task
// is dispatched.
package domain
