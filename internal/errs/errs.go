package errs

import (
	"errors"
	"strings"
)

// Kind classifies how a failure is handled by the workflow.
type Kind uint8

const (
	kindUnset Kind = iota
	// Validation is malformed or empty input to a generation step. Not retried.
	Validation
	// Collaborator is a failure of an external service. Wraps the cause.
	Collaborator
	// Classification is malformed classifier output. Recovered by the engine.
	Classification
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Collaborator:
		return "collaborator"
	case Classification:
		return "classification"
	default:
		return "unknown"
	}
}

// Component names the stage or collaborator that produced an error.
type Component string

const (
	Generation    Component = "generation"
	TextToImage   Component = "text_to_image"
	TextToSpeech  Component = "text_to_speech"
	SpeechToText  Component = "speech_to_text"
	ImageToText   Component = "image_to_text"
	Classifier    Component = "classification"
	Memory        Component = "memory"
	Summarization Component = "summarization"
)

// Error is the workflow error type. Match it with errors.Is against the
// sentinels below, or errors.As to inspect Kind and Component.
type Error struct {
	Kind      Kind
	Component Component
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(string(e.Component))
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel matching e. An unset Kind or
// Component on the target acts as a wildcard.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Msg != "" || t.Err != nil {
		return false
	}
	if t.Kind != kindUnset && t.Kind != e.Kind {
		return false
	}
	if t.Component != "" && t.Component != e.Component {
		return false
	}
	return true
}

var (
	ErrValidation     = &Error{Kind: Validation}
	ErrCollaborator   = &Error{Kind: Collaborator}
	ErrClassification = &Error{Kind: Classification}

	ErrGeneration   = &Error{Component: Generation}
	ErrTextToImage  = &Error{Component: TextToImage}
	ErrTextToSpeech = &Error{Component: TextToSpeech}
	ErrSpeechToText = &Error{Component: SpeechToText}
	ErrImageToText  = &Error{Component: ImageToText}
)

// NewValidation returns a validation error for the component.
func NewValidation(c Component, msg string) *Error {
	return &Error{Kind: Validation, Component: c, Msg: msg}
}

// NewCollaborator wraps a collaborator failure for the component.
func NewCollaborator(c Component, msg string, err error) *Error {
	return &Error{Kind: Collaborator, Component: c, Msg: msg, Err: err}
}

// NewClassification returns a classification error.
func NewClassification(msg string, err error) *Error {
	return &Error{Kind: Classification, Component: Classifier, Msg: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return kindUnset
}

// ComponentOf returns the Component of the first *Error in err's chain.
func ComponentOf(err error) Component {
	var e *Error
	if errors.As(err, &e) {
		return e.Component
	}
	return ""
}
