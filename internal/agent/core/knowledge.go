package core

import (
	"fmt"
	"strings"

	"github.com/sense-app/sense-ai-chat/internal/helpers"
	"github.com/sense-app/sense-ai-chat/internal/llmformat"
	"github.com/sense-app/sense-ai-chat/provider"
)

// Action identifies one of the agent's tools.
type Action string

const (
	ActionReflect  Action = "reflect"
	ActionSearch   Action = "search"
	ActionRead     Action = "readWebContent"
	ActionResearch Action = "research"
	ActionShop     Action = "shop"
)

// AllActions is the full action set offered at the start of a turn.
var AllActions = []Action{ActionReflect, ActionSearch, ActionRead, ActionResearch, ActionShop}

// actionDescriptions is the model-facing description of each action,
// shared between the tool definitions and the bank prompt.
var actionDescriptions = map[Action]string{
	ActionReflect:  "Break the user's shopping request into narrower sub-questions that pin down product or store identity. Pass every sub-question you want investigated.",
	ActionSearch:   "Search the web for the given queries. Queries are expanded with search operators before execution; results land in the knowledge bank.",
	ActionRead:     "Read the given webpage URLs (usually from the bank's search results) and extract learnings, follow-up questions and products from their contents.",
	ActionResearch: "Run deeper multi-step research on candidate products: searches and reads pages in a private loop, then returns ranked product candidates with recommended stores.",
	ActionShop:     "Search shopping listings for the given product terms and return them grouped by canonical product (for cross-store price comparison) and by store.",
}

// State captures which phase of the turn the agent is in. The available
// action set is a pure function of the state.
type State int

const (
	// StateAwaitingReflect offers the full action set, reflect included.
	StateAwaitingReflect State = iota
	// StateAwaitingSignal withholds reflect until search or read has
	// produced new material to reflect on.
	StateAwaitingSignal
	// StateTerminal ends the turn; no actions are offered.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateAwaitingReflect:
		return "awaiting_reflect"
	case StateAwaitingSignal:
		return "awaiting_signal"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition returns the state after an action completes. It is pure:
// tools report what ran, the machine decides what is offered next.
func Transition(s State, completed Action) State {
	if s == StateTerminal {
		return StateTerminal
	}
	switch completed {
	case ActionReflect:
		return StateAwaitingSignal
	case ActionSearch, ActionRead:
		return StateAwaitingReflect
	default:
		return s
	}
}

// Available returns the actions offered in a given state.
func Available(s State) []Action {
	switch s {
	case StateAwaitingReflect:
		return append([]Action(nil), AllActions...)
	case StateAwaitingSignal:
		out := make([]Action, 0, len(AllActions)-1)
		for _, a := range AllActions {
			if a != ActionReflect {
				out = append(out, a)
			}
		}
		return out
	default:
		return nil
	}
}

// SearchResult is one normalized web-search hit held in the bank until
// its URL is read.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// KnowledgeBank accumulates state for one conversation turn. It is owned
// by the orchestrator and mutated only by the tool currently executing;
// it is discarded when the turn's response completes.
type KnowledgeBank struct {
	History       []provider.Message
	Questions     []string
	Learnings     []string
	SearchResults []SearchResult
	Products      []Product

	state    State
	seenURLs map[string]bool
}

func NewKnowledgeBank(history []provider.Message) *KnowledgeBank {
	return &KnowledgeBank{
		History:  history,
		state:    StateAwaitingReflect,
		seenURLs: make(map[string]bool),
	}
}

func (kb *KnowledgeBank) State() State { return kb.state }

// Complete marks the turn finished.
func (kb *KnowledgeBank) Complete() { kb.state = StateTerminal }

// Apply advances the state machine after a tool completes.
func (kb *KnowledgeBank) Apply(completed Action) { kb.state = Transition(kb.state, completed) }

// AvailableActions returns the actions the model may call next.
func (kb *KnowledgeBank) AvailableActions() []Action { return Available(kb.state) }

// LatestUserMessage returns the content of the most recent user message,
// or "" when the history holds none.
func (kb *KnowledgeBank) LatestUserMessage() string {
	for i := len(kb.History) - 1; i >= 0; i-- {
		if kb.History[i].Role == "user" {
			return kb.History[i].Content
		}
	}
	return ""
}

// AddSearchResults appends results whose URL has not been seen this
// turn. Returns how many were actually added. A URL stays "seen" even
// after its entry is consumed by read, so nothing is read twice. URLs
// are compared in canonical form so tracking-parameter variants of the
// same page do not slip through.
func (kb *KnowledgeBank) AddSearchResults(results []SearchResult) int {
	added := 0
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		key := urlKey(r.URL)
		if kb.seenURLs[key] {
			continue
		}
		kb.seenURLs[key] = true
		kb.SearchResults = append(kb.SearchResults, r)
		added++
	}
	return added
}

// RemoveSearchResults drops entries for URLs that have been read.
func (kb *KnowledgeBank) RemoveSearchResults(urls []string) {
	if len(urls) == 0 {
		return
	}
	read := make(map[string]bool, len(urls))
	for _, u := range urls {
		read[urlKey(u)] = true
	}
	kept := kb.SearchResults[:0]
	for _, r := range kb.SearchResults {
		if !read[urlKey(r.URL)] {
			kept = append(kept, r)
		}
	}
	kb.SearchResults = kept
}

func urlKey(raw string) string {
	canonical, err := helpers.CanonicalURL(raw)
	if err != nil {
		return raw
	}
	return canonical
}

// ReplaceQuestions swaps the open-question set for a deduplicated one.
func (kb *KnowledgeBank) ReplaceQuestions(questions []string) {
	kb.Questions = dedupStrings(questions)
}

// AddQuestions appends questions not already present verbatim. Semantic
// deduplication is the reflect tool's job.
func (kb *KnowledgeBank) AddQuestions(questions []string) {
	kb.Questions = dedupStrings(append(kb.Questions, questions...))
}

func (kb *KnowledgeBank) AddLearnings(learnings []string) {
	for _, l := range learnings {
		if strings.TrimSpace(l) != "" {
			kb.Learnings = append(kb.Learnings, l)
		}
	}
}

func (kb *KnowledgeBank) AddProducts(products []Product) {
	kb.Products = append(kb.Products, products...)
}

// Prompt renders the bank as the model-facing context block for the
// next orchestration step.
func (kb *KnowledgeBank) Prompt() string {
	var b strings.Builder

	b.WriteString("Current knowledge bank:\n\n")

	b.WriteString("Open Questions:\n")
	b.WriteString(llmformat.JSON(kb.Questions))
	b.WriteString("\n\n")

	b.WriteString("Search Results:\n")
	b.WriteString(llmformat.JSON(kb.SearchResults))
	b.WriteString("\n\n")

	b.WriteString("Learnings:\n")
	b.WriteString(llmformat.JSON(kb.Learnings))
	b.WriteString("\n\n")

	b.WriteString("Products Found:\n")
	b.WriteString(llmformat.JSON(kb.Products))
	b.WriteString("\n\n")

	b.WriteString("Available actions:\n")
	for _, a := range kb.AvailableActions() {
		b.WriteString("- ")
		b.WriteString(string(a))
		b.WriteString(": ")
		b.WriteString(actionDescriptions[a])
		b.WriteString("\n")
	}

	return b.String()
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
