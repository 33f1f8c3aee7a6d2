package cron

import "github.com/google/uuid"

// Payload tells the job handler what to do when a schedule fires.
type Payload struct {
	// Kind selects the handler action: "day-end" closes out the current
	// logical day, "notify" sends Message to Channel/ChatID.
	Kind    string `json:"kind"`
	Channel string `json:"channel,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Schedule describes when a job fires. Exactly one of the kind-specific
// fields is meaningful for a given Kind.
type Schedule struct {
	// Kind is "cron" (Expr, with seconds), "every" (EveryMs) or "at" (AtMs).
	Kind    string `json:"kind"`
	Expr    string `json:"expr,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
	AtMs    int64  `json:"atMs,omitempty"`
}

type State struct {
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          State    `json:"state"`
}

func NewJob(name string, schedule Schedule, payload Payload) Job {
	return Job{
		ID:       uuid.NewString(),
		Name:     name,
		Enabled:  true,
		Schedule: schedule,
		Payload:  payload,
	}
}
