package ai

// StepKind identifies a primitive action inside a plan.
type StepKind int

const (
	// StepSay broadcasts a chat line from the actor.
	StepSay StepKind = iota
	// StepWait suspends the plan for a sampled duration.
	StepWait
	// StepSkill begins a skill cast; the plan suspends for the cast time.
	StepSkill
	// StepAttack strikes the current target with bounded random damage.
	// Suspends until the combat collaborator reports completion.
	StepAttack
	// StepFollow moves toward the current target until within the bounded
	// range. Suspends until the movement collaborator reports completion.
	StepFollow
	// StepCancel aborts any in-progress skill cast.
	StepCancel
	// StepWander takes one idle wander move, leashed to the spawn point.
	StepWander
	// StepCounter adjusts an instance-local counter.
	StepCounter
	// StepLoseTarget clears the hate list and drops the current target.
	StepLoseTarget
	// StepState transitions the instance to another state after this plan.
	StepState
)

// Step is one primitive action. Plans are ordered step lists built by a
// handler once per entry; the instance cursor records where execution
// suspended so resumption continues from the exact step.
type Step struct {
	Kind    StepKind
	Text    string // say text, or target state for StepState
	Min     int    // wait ms / attack damage / follow range lower bound
	Max     int    // matching upper bound
	SkillID int
	Counter string
	Delta   int
}

// plan is a step sequence plus its suspension cursor.
type plan struct {
	steps   []Step
	cursor  int
	isEvent bool
}

func (p *plan) done() bool {
	return p == nil || p.cursor >= len(p.steps)
}

func (p *plan) current() *Step {
	if p.done() {
		return nil
	}
	return &p.steps[p.cursor]
}
