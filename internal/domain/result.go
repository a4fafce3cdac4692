package domain

import "eikotrace/pkg/field"

// JobResult is the terminal payload of a successful task. Solve jobs
// populate Distance; extraction jobs populate Geometry. The payload is
// produced fresh per job and handed to the caller with no shared
// mutable state afterward.
type JobResult struct {
	Geometry    *Geometry    `json:"geometry,omitempty"`
	Distance    *field.Field `json:"-"`
	Performance *Performance `json:"performance"`
}
