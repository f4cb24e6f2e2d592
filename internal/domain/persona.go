package domain

import "fmt"

// ─── Persona Registry ───────────────────────────────────────────────────────
// The stakeholder panel is fixed. Adding a persona means adding a constant
// and a row in personaTable; there is no runtime registration.

// Persona identifies one simulated stakeholder.
type Persona int

const (
	PersonaBusinessManager Persona = iota
	PersonaEngineer
	PersonaDesigner
	PersonaCustomer
	PersonaProductManager

	personaCount
)

type personaInfo struct {
	key    string
	name   string
	focus  string
	prompt string
}

var personaTable = [personaCount]personaInfo{
	PersonaBusinessManager: {
		key:   "business_manager",
		name:  "Business Manager",
		focus: "profit, scalability, market opportunity, revenue model",
		prompt: "You are a Business Manager focused on profitability, scalability, and market opportunities. " +
			"Consider revenue models, market size, competitive advantages, and business viability. " +
			"Be practical about business constraints and opportunities.",
	},
	PersonaEngineer: {
		key:   "engineer",
		name:  "Engineer",
		focus: "technical feasibility, implementation complexity, technology stack",
		prompt: "You are a Senior Engineer focused on technical feasibility and implementation. " +
			"Consider technology stack, development complexity, scalability, security, and technical constraints. " +
			"Be realistic about what can be built and how long it would take.",
	},
	PersonaDesigner: {
		key:   "designer",
		name:  "Designer",
		focus: "usability, aesthetics, user experience, interface design",
		prompt: "You are a UX/UI Designer focused on user experience and design. " +
			"Consider usability, aesthetics, user flows, accessibility, and design principles. " +
			"Think about how users will interact with the product.",
	},
	PersonaCustomer: {
		key:   "customer",
		name:  "Customer",
		focus: "needs, pain points, user value, real-world usage",
		prompt: "You are a Customer representing end users. " +
			"Focus on real needs, pain points, user value, and how people would actually use this product. " +
			"Think about what problems this solves and what would make you want to use it.",
	},
	PersonaProductManager: {
		key:   "product_manager",
		name:  "Product Manager",
		focus: "balance trade-offs, prioritize features, product strategy",
		prompt: "You are a Product Manager focused on balancing trade-offs and product strategy. " +
			"Consider feature prioritization, user needs vs business needs, and how to create a successful product. " +
			"Think about the overall product vision and roadmap.",
	},
}

// AllPersonas returns the panel in debate order.
func AllPersonas() []Persona {
	out := make([]Persona, personaCount)
	for i := range out {
		out[i] = Persona(i)
	}
	return out
}

// ParsePersona looks a persona up by its stable key.
func ParsePersona(key string) (Persona, error) {
	for i, p := range personaTable {
		if p.key == key {
			return Persona(i), nil
		}
	}
	return 0, fmt.Errorf("unknown persona %q", key)
}

func (p Persona) info() personaInfo {
	if p < 0 || p >= personaCount {
		return personaInfo{key: "unknown", name: "Unknown"}
	}
	return personaTable[p]
}

// Key is the stable identifier used in config and metrics labels.
func (p Persona) Key() string { return p.info().key }

// Name is the display name used in prompts and the debate log.
func (p Persona) Name() string { return p.info().name }

// Focus is the one-line description of the persona's priorities.
func (p Persona) Focus() string { return p.info().focus }

// SystemPrompt frames the persona for the generation service.
func (p Persona) SystemPrompt() string { return p.info().prompt }

// String implements fmt.Stringer.
func (p Persona) String() string { return p.Key() }
