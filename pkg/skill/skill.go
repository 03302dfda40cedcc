// Package skill defines the local command handlers consulted before any
// model inference.
//
// A skill declares trigger phrases and a match mode; the router walks the
// registered skills in order and hands the transcript to the first ones
// that match. Skills answer locally (device control, calculator, clock)
// so common commands never touch the network.
package skill

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Mode selects how a skill's triggers are matched against the transcript.
type Mode int

const (
	// MatchPrefix fires when the transcript starts with a trigger.
	MatchPrefix Mode = iota
	// MatchSubstring fires when a trigger appears anywhere.
	MatchSubstring
)

// ResultKind tags what a skill produced for a transcript.
type ResultKind int

const (
	// NoMatch means the skill has nothing to say; routing continues.
	NoMatch ResultKind = iota
	// Answer is a complete spoken response; routing stops.
	Answer
	// AnswerFinal is a complete response that must also suppress any
	// follow-up output for the session, e.g. after starting playback.
	AnswerFinal
	// Supplemental is context for the model, not a response; routing
	// continues to the next skill and on to inference.
	Supplemental
)

// Result is a skill's verdict on a transcript.
type Result struct {
	Kind ResultKind
	Text string
	// ForceSpeak bypasses the speaking-state suppression so the answer
	// is voiced even while other output is playing.
	ForceSpeak bool
}

// None reports that the skill does not handle this transcript.
func None() Result {
	return Result{Kind: NoMatch}
}

// Respond returns a complete spoken answer.
func Respond(text string) Result {
	return Result{Kind: Answer, Text: text}
}

// Final returns an answer that ends the session outright.
func Final(text string) Result {
	return Result{Kind: AnswerFinal, Text: text}
}

// Fact returns model context without answering.
func Fact(text string) Result {
	return Result{Kind: Supplemental, Text: text}
}

// Skill handles a family of voice commands.
type Skill interface {
	// Name identifies the skill in logs and the help listing.
	Name() string
	// Triggers lists the phrases this skill reacts to, lower-case.
	Triggers() []string
	// Mode says how triggers are matched.
	Mode() Mode
	// Handle processes a transcript. lower is the lower-cased transcript
	// used for matching; original preserves the user's casing.
	Handle(lower, original string) Result
}

// DeviceStatus is a point-in-time reading for a monitored device.
type DeviceStatus struct {
	Device    string  `json:"device"`
	State     string  `json:"state"`
	PowerW    float64 `json:"power_w,omitempty"`
	Reachable bool    `json:"reachable"`
}

// StatusProvider is implemented by skills that can report live device
// state for the HTTP API.
type StatusProvider interface {
	StatusFor(nickname string) (DeviceStatus, bool)
}

// DeviceLister is implemented by skills that expose controllable and
// read-only devices to the HTTP API.
type DeviceLister interface {
	Toggles() []string
	Sensors() []string
}

// Daemon is implemented by skills that run a background poller.
type Daemon interface {
	StartDaemon(ctx context.Context)
}

// RouteRegistrar is implemented by skills that add HTTP routes of their
// own to the API server.
type RouteRegistrar interface {
	RegisterRoutes(router fiber.Router)
}

// Matches reports whether the lower-cased transcript trips any of the
// triggers under the given mode.
func Matches(lower string, triggers []string, mode Mode) bool {
	for _, trig := range triggers {
		switch mode {
		case MatchPrefix:
			if strings.HasPrefix(lower, trig) {
				return true
			}
		case MatchSubstring:
			if strings.Contains(lower, trig) {
				return true
			}
		}
	}
	return false
}
