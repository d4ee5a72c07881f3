// Package orch holds the data model shared by the Router, Planner, Agent
// Loop, Reflector and Supervisor: turns, routing decisions, plans and
// ReAct steps. Keeping these in one package avoids import cycles between
// the components that produce and consume them.
package orch

import "time"

// Role identifies who spoke a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single timestamped utterance in a session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentRole is one of the six closed-set agent roles. Roles are a tagged
// enum at the type boundary rather than an open string so the Router and
// Agent Loop can exhaustively switch on them.
type AgentRole string

const (
	RoleGeneralChat AgentRole = "GeneralChat"
	RoleCoder       AgentRole = "Coder"
	RoleResearcher  AgentRole = "Researcher"
	RoleReasoner    AgentRole = "Reasoner"
	RolePlanner     AgentRole = "Planner"
	RoleReviewer    AgentRole = "Reviewer"
)

// RoutingDecision is the Router's classification of a query.
type RoutingDecision struct {
	AgentRole          AgentRole `json:"agent_role"`
	ShouldSearchMemory bool      `json:"should_search_memory"`
	Reason             string    `json:"reason"`
}

// StepStatus is a Plan Step's lifecycle state.
type StepStatus string

const (
	StepPending   StepStatus = "Pending"
	StepRunning   StepStatus = "Running"
	StepCompleted StepStatus = "Completed"
	StepFailed    StepStatus = "Failed"
)

// Step is one node of a Plan's dependency DAG.
type Step struct {
	StepNum        int        `json:"step_num"`
	Description    string     `json:"description"`
	AgentRole      AgentRole  `json:"agent_role"`
	ExpectedOutput string     `json:"expected_output"`
	DependsOn      []int      `json:"depends_on"`
	Status         StepStatus `json:"status"`
	Output         *string    `json:"output,omitempty"`
}

// Plan is an ordered sequence of Steps forming a DAG by back-reference.
type Plan struct {
	Steps []*Step `json:"steps"`
}

// IsComplete reports whether every Step in the Plan has Completed.
func (p *Plan) IsComplete() bool {
	for _, s := range p.Steps {
		if s.Status != StepCompleted {
			return false
		}
	}
	return true
}

// HasFailed reports whether any Step in the Plan has Failed.
func (p *Plan) HasFailed() bool {
	for _, s := range p.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// CompleteStep marks stepNum Completed with the given output. A no-op if
// stepNum is not found.
func (p *Plan) CompleteStep(stepNum int, output string) {
	for _, s := range p.Steps {
		if s.StepNum == stepNum {
			s.Status = StepCompleted
			s.Output = &output
			return
		}
	}
}

// FailStep marks stepNum Failed. A no-op if stepNum is not found.
func (p *Plan) FailStep(stepNum int) {
	for _, s := range p.Steps {
		if s.StepNum == stepNum {
			s.Status = StepFailed
			return
		}
	}
}

// ReadySteps returns all Pending steps whose dependencies are all
// Completed.
func (p *Plan) ReadySteps() []*Step {
	byNum := make(map[int]*Step, len(p.Steps))
	for _, s := range p.Steps {
		byNum[s.StepNum] = s
	}
	var ready []*Step
	for _, s := range p.Steps {
		if s.Status != StepPending {
			continue
		}
		eligible := true
		for _, dep := range s.DependsOn {
			ds, ok := byNum[dep]
			if !ok || ds.Status != StepCompleted {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, s)
		}
	}
	return ready
}

// ToolCall names a tool invocation with structured parameters.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ReActStep is one iteration of the Agent Loop: a thought, zero or more
// tool calls with their observations, and optionally a final answer.
type ReActStep struct {
	Thought      string     `json:"thought"`
	Actions      []ToolCall `json:"actions"`
	Observations []string   `json:"observations"`
	IsFinal      bool       `json:"is_final"`
	Answer       string     `json:"answer,omitempty"`
}

// AgentResponse is the Agent Loop's terminal result.
type AgentResponse struct {
	Success   bool        `json:"success"`
	Answer    string      `json:"answer"`
	Steps     []ReActStep `json:"steps"`
	AgentRole AgentRole   `json:"agent_role"`
	Error     string      `json:"error,omitempty"`
}
