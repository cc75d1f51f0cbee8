package protocol

// Protocol is a placeholder override sequence offered once a log is confirmed.
type Protocol struct {
	Tag         string   `json:"tag"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
}

// DefaultTag selects the protocol used when a log carries no pattern tag.
const DefaultTag = "default"

var baseSteps = []string{
	"Identify current physical sensations",
	"Take 3 measured breaths (4 in, 8 out)",
	"Name the emotion without judgment",
	"Locate the trigger source",
	"Execute response protocol",
}

// Clone returns a copy whose Steps slice is not shared with p.
func (p Protocol) Clone() Protocol {
	out := p
	if p.Steps != nil {
		out.Steps = append([]string(nil), p.Steps...)
	}
	return out
}

func withBase(extra ...string) []string {
	steps := make([]string, 0, len(baseSteps)+len(extra))
	steps = append(steps, baseSteps...)
	return append(steps, extra...)
}

// Seed provides the placeholder protocols, one per built-in pattern tag.
func Seed() []Protocol {
	return []Protocol{
		{
			Tag:         DefaultTag,
			Name:        "Baseline override",
			Description: "Generic interruption sequence for unclassified activation.",
			Steps:       withBase(),
		},
		{
			Tag:   "sunk-cost",
			Name:  "Sunk-cost release",
			Steps: withBase("State the spent resource as a closed fact, not a debt"),
		},
		{
			Tag:   "anticipatory-vigilance",
			Name:  "Vigilance interruption",
			Steps: withBase("Set a fixed time window before the next check"),
		},
		{
			Tag:   "emotional-pendulum",
			Name:  "Pendulum stabilisation",
			Steps: withBase("Delay any repair message by one full hour"),
		},
		{
			Tag:   "compliance-reflex",
			Name:  "Compliance pause",
			Steps: withBase("Separate gratitude from obligation in one written sentence"),
		},
		{
			Tag:   "boundary-violation",
			Name:  "Boundary restatement",
			Steps: withBase("Write the boundary that was crossed in plain terms"),
		},
		{
			Tag:   "performance-anxiety",
			Name:  "Pre-performance discharge",
			Steps: withBase("Stop reviewing material; schedule a final single pass"),
		},
		{
			Tag:   "family-dynamics",
			Name:  "Lineage separation",
			Steps: withBase("Name which reaction belongs to the present moment"),
		},
		{
			Tag:   "financial-anxiety",
			Name:  "Transaction closure",
			Steps: withBase("Verify the transaction once, then close the banking app"),
		},
	}
}

// SomaticAddenda are appended to a sequence when the log reports the sensation.
var SomaticAddenda = []struct {
	Somatic string
	Step    string
}{
	{Somatic: "tight chest", Step: "Address chest tension with focused breathing"},
	{Somatic: "checking", Step: "Remove access to checking stimulus"},
	{Somatic: "anxiety", Step: "Ground through sensory awareness"},
}

// Sequence returns the steps of p extended by the addenda matching somatic.
func (p Protocol) Sequence(somatic []string) []string {
	steps := append([]string(nil), p.Steps...)
	for _, add := range SomaticAddenda {
		for _, s := range somatic {
			if s == add.Somatic {
				steps = append(steps, add.Step)
				break
			}
		}
	}
	return steps
}
