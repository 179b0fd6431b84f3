package agent

import (
	"time"

	"github.com/sells-group/bikepass-cli/internal/model"
)

// recorder accumulates the run's timeline narrative and step log. Both are
// append-only and scoped to a single run.
type recorder struct {
	timeline []model.TimelineEntry
	steps    []model.StepLogEntry
}

func (r *recorder) thought(content string)     { r.append(model.TimelineThought, content) }
func (r *recorder) action(content string)      { r.append(model.TimelineAction, content) }
func (r *recorder) observation(content string) { r.append(model.TimelineObservation, content) }
func (r *recorder) finalAnswer(content string) { r.append(model.TimelineFinalAnswer, content) }

func (r *recorder) append(kind, content string) {
	r.timeline = append(r.timeline, model.TimelineEntry{
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// logStep records one collaborator invocation in call order.
func (r *recorder) logStep(tool string, args map[string]any, latency time.Duration, err error) {
	entry := model.StepLogEntry{
		Step:      len(r.steps) + 1,
		Tool:      tool,
		ArgsHash:  fingerprintArgs(args),
		LatencyMS: latency.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		entry.StopReason = "tool_error"
	}
	r.steps = append(r.steps, entry)
}
