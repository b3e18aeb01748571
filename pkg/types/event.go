package types

import "time"

// EventType defines the type of event emitted by an assistant while it runs
// against a host page.
type EventType string

const (
	EventTypeEditorDetected      EventType = "editor_detected"      // EventTypeEditorDetected indicates a new compose editor was resolved.
	EventTypeEditorLost          EventType = "editor_lost"          // EventTypeEditorLost indicates the tracked editor left the document.
	EventTypeControlAttached     EventType = "control_attached"     // EventTypeControlAttached indicates the control was placed on the page.
	EventTypeControlDetached     EventType = "control_detached"     // EventTypeControlDetached indicates the control was removed from the page.
	EventTypeGenerationStart     EventType = "generation_start"     // EventTypeGenerationStart indicates a reply generation was dispatched.
	EventTypeGenerationComplete  EventType = "generation_complete"  // EventTypeGenerationComplete indicates a reply was written into the editor.
	EventTypeGenerationFailed    EventType = "generation_failed"    // EventTypeGenerationFailed indicates a generation ended with an error.
	EventTypeReloadRequired      EventType = "reload_required"      // EventTypeReloadRequired indicates the messaging channel is gone for good.
	EventTypeExtractionFallback  EventType = "extraction_fallback"  // EventTypeExtractionFallback indicates the heuristic page scrape was used.
	EventTypeAssistantStopped    EventType = "assistant_stopped"    // EventTypeAssistantStopped indicates the assistant released the page.
)

// Event represents something observable that happened in an assistant.
type Event struct {
	// Time is when the event was produced.
	Time time.Time

	// Error carries the failure for failed/reload events.
	Error error

	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// Type indicates the kind of event.
	Type EventType

	// Host is the profile name of the page the event belongs to.
	Host string

	// ControlID identifies the injected control, when one is involved.
	ControlID string

	// Placement is the strategy used for control attached events.
	Placement string

	// Tone is the tone requested for generation events.
	Tone Tone
}

// NewEvent creates an event of the given type stamped with the current time.
func NewEvent(eventType EventType, host string) *Event {
	return &Event{
		Type:     eventType,
		Host:     host,
		Time:     time.Now(),
		Metadata: make(map[string]interface{}),
	}
}

// WithControl sets the control id and returns the event.
func (e *Event) WithControl(id string) *Event {
	e.ControlID = id
	return e
}

// WithError sets the error and returns the event.
func (e *Event) WithError(err error) *Event {
	e.Error = err
	return e
}

// IsError returns true for events that carry a failure.
func (e *Event) IsError() bool {
	return e.Type == EventTypeGenerationFailed || e.Type == EventTypeReloadRequired
}
