package dispatch

import (
	"fmt"
	"time"

	"baserow-bridge/internal/records"
)

// Step is one unit of a Plan: a payload to POST and the pause that follows it.
type Step struct {
	Name       string
	Payload    interface{}
	Items      int
	DelayAfter time.Duration
}

// Plan is an ordered list of steps run by a Driver.
type Plan []Step

// Items returns the number of records carried by the whole plan.
func (p Plan) Items() int {
	total := 0
	for _, step := range p {
		total += step.Items
	}
	return total
}

// SinglePayload is the body of a single-shot dispatch.
type SinglePayload struct {
	Items []records.Record `json:"items"`
}

// BatchPayload is the body of one batch, shaped for an n8n webhook node that
// reads its input from "body".
type BatchPayload struct {
	Body BatchBody `json:"body"`
}

// BatchBody lists the domains of a batch and maps each domain to its row id.
// A domain appearing twice in a batch maps to the last row carrying it.
type BatchBody struct {
	Domains []string               `json:"domains"`
	Mapping map[string]interface{} `json:"mapping"`
}

// NewBatchPayload builds the payload for one chunk of records.
func NewBatchPayload(chunk []records.Record) BatchPayload {
	body := BatchBody{
		Domains: make([]string, 0, len(chunk)),
		Mapping: make(map[string]interface{}, len(chunk)),
	}
	for _, rec := range chunk {
		body.Domains = append(body.Domains, rec.Domain)
		body.Mapping[rec.Domain] = rec.RecordID
	}
	return BatchPayload{Body: body}
}

// SinglePlan wraps every record in one step.
func SinglePlan(recs []records.Record) Plan {
	return Plan{{
		Name:    "items",
		Payload: SinglePayload{Items: recs},
		Items:   len(recs),
	}}
}

// BatchPlan splits recs into chunks of size and pauses interval between
// chunks. The last step never carries a delay.
func BatchPlan(recs []records.Record, size int, interval time.Duration) Plan {
	if size <= 0 {
		size = len(recs)
	}
	if len(recs) == 0 {
		return nil
	}

	total := (len(recs) + size - 1) / size
	plan := make(Plan, 0, total)
	for i := 0; i < total; i++ {
		start := i * size
		end := start + size
		if end > len(recs) {
			end = len(recs)
		}

		step := Step{
			Name:    fmt.Sprintf("batch %d/%d", i+1, total),
			Payload: NewBatchPayload(recs[start:end]),
			Items:   end - start,
		}
		if i < total-1 {
			step.DelayAfter = interval
		}
		plan = append(plan, step)
	}
	return plan
}
