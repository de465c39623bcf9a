package chat

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned by Transition for an event the current
// node does not accept.
var ErrInvalidTransition = errors.New("chat: invalid transition")

// Node is a state of the per-turn graph.
type Node int

const (
	NodeStart Node = iota
	NodeClassify
	NodeUseSummary
	NodeQueryOrRespond
	NodeTools
	NodeGenerate
	NodeEnd
)

var nodeNames = [...]string{"start", "classify", "useSummary", "queryOrRespond", "tools", "generate", "end"}

func (n Node) String() string {
	if n < 0 || int(n) >= len(nodeNames) {
		return fmt.Sprintf("node(%d)", int(n))
	}
	return nodeNames[n]
}

// Event is the outcome of executing a node's effect.
type Event int

const (
	// EventBegin starts a turn.
	EventBegin Event = iota
	// EventGlobal means the question is about the whole document.
	EventGlobal
	// EventLocal means the question is about a specific passage or fact.
	EventLocal
	// EventToolCalls means the model asked for one or more tools.
	EventToolCalls
	// EventToolResults means every requested tool has answered.
	EventToolResults
	// EventAnswered means the model produced the final reply.
	EventAnswered
)

var eventNames = [...]string{"begin", "global", "local", "toolCalls", "toolResults", "answered"}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

// Effect is the I/O the engine performs on entering a node.
type Effect int

const (
	EffectNone Effect = iota
	EffectClassify
	EffectAnswerFromSummary
	EffectQueryOrRespond
	EffectRunTools
	EffectGenerate
)

var effectNames = [...]string{"none", "classify", "answerFromSummary", "queryOrRespond", "runTools", "generate"}

func (e Effect) String() string {
	if e < 0 || int(e) >= len(effectNames) {
		return fmt.Sprintf("effect(%d)", int(e))
	}
	return effectNames[e]
}

type edge struct {
	from Node
	on   Event
}

type target struct {
	to     Node
	effect Effect
}

// edges is the whole graph:
//
//	start → classify → useSummary → end
//	                 → queryOrRespond → end
//	                                  → tools → generate → end
var edges = map[edge]target{
	{NodeStart, EventBegin}:              {NodeClassify, EffectClassify},
	{NodeClassify, EventGlobal}:          {NodeUseSummary, EffectAnswerFromSummary},
	{NodeClassify, EventLocal}:           {NodeQueryOrRespond, EffectQueryOrRespond},
	{NodeUseSummary, EventAnswered}:      {NodeEnd, EffectNone},
	{NodeQueryOrRespond, EventAnswered}:  {NodeEnd, EffectNone},
	{NodeQueryOrRespond, EventToolCalls}: {NodeTools, EffectRunTools},
	{NodeTools, EventToolResults}:        {NodeGenerate, EffectGenerate},
	{NodeGenerate, EventAnswered}:        {NodeEnd, EffectNone},
}

// longestPath is the number of transitions from start to end through
// queryOrRespond, tools and generate.
const longestPath = 5

// Transition returns the node reached from n on e and the effect to run on
// entering it. It performs no I/O.
func Transition(n Node, e Event) (Node, Effect, error) {
	t, ok := edges[edge{n, e}]
	if !ok {
		return n, EffectNone, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, n, e)
	}
	return t.to, t.effect, nil
}
