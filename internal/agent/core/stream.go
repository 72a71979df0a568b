package core

import "sync"

// Annotation is a typed progress event emitted by a tool while it runs,
// surfaced to the client alongside streamed text.
type Annotation struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Stream is the output channel for one chat turn. Writes are ordered as
// produced; implementations must not reorder events.
type Stream interface {
	// Text appends a chunk of assistant-visible text.
	Text(chunk string) error
	// Annotate emits a tool-progress annotation.
	Annotate(a Annotation) error
	// Data emits a structured payload (e.g. shopping results) for the
	// client to render.
	Data(v interface{}) error
}

// NopStream discards everything. Useful for sub-loops that must not
// leak intermediate output to the client.
type NopStream struct{}

func (NopStream) Text(string) error        { return nil }
func (NopStream) Annotate(Annotation) error { return nil }
func (NopStream) Data(interface{}) error   { return nil }

// Recorder captures stream writes in memory for inspection in tests.
type Recorder struct {
	mu          sync.Mutex
	Texts       []string
	Annotations []Annotation
	Payloads    []interface{}
}

func (r *Recorder) Text(chunk string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Texts = append(r.Texts, chunk)
	return nil
}

func (r *Recorder) Annotate(a Annotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Annotations = append(r.Annotations, a)
	return nil
}

func (r *Recorder) Data(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Payloads = append(r.Payloads, v)
	return nil
}
