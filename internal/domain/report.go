package domain

import "time"

// ScheduleReport summarizes one scheduling engine pass.
type ScheduleReport struct {
	Drafts      int
	Scheduled   int
	Capacity    int // items with no feasible slot in the horizon
	Errors      int
	Unscheduled []string // content ids left without a slot
	Duration    time.Duration
}

// DispatchReport summarizes one dispatcher pass.
type DispatchReport struct {
	Due       int
	Published int
	Retrying  int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// MonitorReport summarizes one engagement monitor cycle for one platform.
type MonitorReport struct {
	Platform   string
	Fetched    int
	New        int
	Duplicates int
	Classified int
	Responded  int
	Deferred   int // classified events held back by the response budget
	Ignored    int
	Escalated  int
	Errors     int
	Skipped    bool // cycle abandoned because the fetch failed
	Duration   time.Duration
}

// RebuildReport summarizes one analytics rebuild.
type RebuildReport struct {
	Buckets   int
	Published int
	Failed    int
	Events    int
	Responses int
	Duration  time.Duration
}
