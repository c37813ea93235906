// Package extract pulls structured information out of meeting
// transcripts using JSON-mode completions.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docstack/ragpipe/internal/apperr"
	"github.com/docstack/ragpipe/internal/llm"
)

// ActionItem is a task identified in a transcript.
type ActionItem struct {
	Task     string `json:"task"`
	Owner    string `json:"owner,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Decision is a finalized decision identified in a transcript.
type Decision struct {
	Decision string `json:"decision"`
	Context  string `json:"context,omitempty"`
	Impact   string `json:"impact,omitempty"`
}

// MeetingNotes is the full structured extraction from one transcript.
type MeetingNotes struct {
	Decisions    []Decision   `json:"decisions"`
	ActionItems  []ActionItem `json:"action_items"`
	KeyPoints    []string     `json:"key_points"`
	Participants []string     `json:"participants"`
	NextSteps    []string     `json:"next_steps"`
}

// Generator produces JSON-mode completions.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, out any, opts ...llm.Option) (llm.Usage, error)
}

// Extractor runs structured extractions.
type Extractor struct {
	generator Generator
	logger    *slog.Logger
}

// New creates an extractor. A nil logger falls back to slog.Default().
func New(generator Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{generator: generator, logger: logger}
}

const meetingNotesTemplate = `You are an expert at extracting structured information from meeting transcripts.

Analyze the following meeting transcript and extract:

1. **Decisions Made**: Key decisions that were finalized
2. **Action Items**: Tasks with assigned owners and due dates (if mentioned)
3. **Key Discussion Points**: Important topics discussed
4. **Participants**: People mentioned in the meeting (if identifiable)
5. **Next Steps**: Planned follow-up actions

Format your response as a structured JSON with the following schema:
{
  "decisions": [
    {"decision": "...", "context": "...", "impact": "..."}
  ],
  "action_items": [
    {"task": "...", "owner": "...", "due_date": "...", "priority": "..."}
  ],
  "key_points": ["...", "..."],
  "participants": ["...", "..."],
  "next_steps": ["...", "..."]
}

Meeting Transcript:
%s

Extracted Information (JSON):`

// MeetingNotes extracts decisions, action items, key points,
// participants, and next steps from a transcript. A response that is
// not valid JSON is reported as a generation backend error.
func (e *Extractor) MeetingNotes(ctx context.Context, transcript string) (*MeetingNotes, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", apperr.ErrValidation)
	}

	var notes MeetingNotes
	usage, err := e.generator.GenerateJSON(ctx, fmt.Sprintf(meetingNotesTemplate, transcript), &notes,
		llm.WithTemperature(0.1))
	if err != nil {
		return nil, err
	}

	e.logger.Info("extracted meeting notes",
		"decisions", len(notes.Decisions),
		"action_items", len(notes.ActionItems),
		"tokens", usage.TotalTokens)
	return &notes, nil
}
