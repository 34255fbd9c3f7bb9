// Package agent routes a patient's free-text question to a prompt strategy and
// asks the language model for an answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medibook-server/internal/directory"
	"medibook-server/internal/external"
	"medibook-server/internal/models"
)

// Mode selects how the prompt is built.
type Mode string

const (
	ModeGeneral   Mode = "general"
	ModeSearch    Mode = "search"
	ModeKnowledge Mode = "knowledge"
	ModeDoctor    Mode = "doctor"
)

// ErrUnknownMode is returned for a mode outside the four above.
var ErrUnknownMode = errors.New("unknown agent mode")

// ParseMode defaults to general when s is empty.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeGeneral, nil
	case ModeGeneral, ModeSearch, ModeKnowledge, ModeDoctor:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// DoctorFinder is the part of the directory the doctor mode needs.
type DoctorFinder interface {
	SearchDoctors(ctx context.Context, q directory.DoctorQuery) ([]models.DoctorProfile, error)
	Specializations(ctx context.Context) ([]string, error)
}

// Answer is the agent's reply. Sources, Findings and Doctors are filled by the
// mode that produced them.
type Answer struct {
	Mode           Mode                     `json:"mode"`
	Reply          string                   `json:"reply"`
	Sources        []external.SearchResult  `json:"sources,omitempty"`
	Findings       []map[string]interface{} `json:"findings,omitempty"`
	Specialization string                   `json:"specialization,omitempty"`
	Doctors        []models.DoctorView      `json:"doctors,omitempty"`
}

// Agent wires the collaborators together.
type Agent struct {
	llm     external.LLM
	search  external.Search
	graph   external.Graph
	doctors DoctorFinder
}

// New creates an Agent.
func New(llm external.LLM, search external.Search, graph external.Graph, doctors DoctorFinder) *Agent {
	return &Agent{llm: llm, search: search, graph: graph, doctors: doctors}
}

const preamble = "You are a careful medical assistant for a clinic booking service. " +
	"Give general guidance only, never a diagnosis, and suggest seeing a doctor when symptoms are serious.\n\n"

// Chat answers message using mode.
func (a *Agent) Chat(ctx context.Context, mode Mode, message string) (*Answer, error) {
	message = strings.TrimSpace(message)
	switch mode {
	case ModeGeneral:
		return a.general(ctx, message)
	case ModeSearch:
		return a.withSearch(ctx, message)
	case ModeKnowledge:
		return a.withKnowledge(ctx, message)
	case ModeDoctor:
		return a.recommendDoctor(ctx, message)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func (a *Agent) general(ctx context.Context, message string) (*Answer, error) {
	reply, err := a.llm.GenerateContent(ctx, preamble+"Patient: "+message)
	if err != nil {
		return nil, err
	}
	return &Answer{Mode: ModeGeneral, Reply: reply}, nil
}

func (a *Agent) withSearch(ctx context.Context, message string) (*Answer, error) {
	results, err := a.search.Search(ctx, message)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString("Use these web results where relevant and cite their links:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s (%s): %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	sb.WriteString("\nPatient: " + message)

	reply, err := a.llm.GenerateContent(ctx, sb.String())
	if err != nil {
		return nil, err
	}
	return &Answer{Mode: ModeSearch, Reply: reply, Sources: results}, nil
}

const knowledgeQuery = `MATCH (s:Symptom)-[:INDICATES]->(c:Condition)
WHERE toLower(s.name) IN $terms
OPTIONAL MATCH (c)-[:TREATED_BY]->(sp:Specialization)
RETURN s.name AS symptom, c.name AS condition, sp.name AS specialization
LIMIT 20`

func (a *Agent) withKnowledge(ctx context.Context, message string) (*Answer, error) {
	findings, err := a.graph.ExecuteQuery(ctx, knowledgeQuery, map[string]interface{}{"terms": terms(message)})
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(preamble)
	if len(findings) == 0 {
		sb.WriteString("The knowledge graph has no entries for these symptoms.\n")
	} else {
		sb.WriteString("Knowledge graph entries linking symptoms to conditions:\n")
		for _, f := range findings {
			fmt.Fprintf(&sb, "- %v suggests %v (specialist: %v)\n", f["symptom"], f["condition"], f["specialization"])
		}
	}
	sb.WriteString("\nPatient: " + message)

	reply, err := a.llm.GenerateContent(ctx, sb.String())
	if err != nil {
		return nil, err
	}
	return &Answer{Mode: ModeKnowledge, Reply: reply, Findings: findings}, nil
}

// FallbackSpecialization is recommended when the model's pick matches nothing offered.
const FallbackSpecialization = "General Practice"

func (a *Agent) recommendDoctor(ctx context.Context, message string) (*Answer, error) {
	offered, err := a.doctors.Specializations(ctx)
	if err != nil {
		return nil, err
	}
	prompt := preamble +
		"Pick the single most suitable specialization for the patient from this list: " +
		strings.Join(offered, ", ") +
		". Answer with the specialization name on the first line, then one short sentence explaining why.\n\nPatient: " + message
	reply, err := a.llm.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	specialization := matchSpecialization(reply, offered)
	doctors, err := a.doctors.SearchDoctors(ctx, directory.DoctorQuery{Specialization: specialization, Limit: 5})
	if err != nil {
		return nil, err
	}
	views := make([]models.DoctorView, 0, len(doctors))
	for i := range doctors {
		views = append(views, doctors[i].View())
	}
	return &Answer{Mode: ModeDoctor, Reply: reply, Specialization: specialization, Doctors: views}, nil
}

// matchSpecialization returns the offered specialization named on the first
// line of reply, else the first one mentioned anywhere, else the fallback.
func matchSpecialization(reply string, offered []string) string {
	lower := strings.ToLower(reply)
	first := lower
	if i := strings.IndexByte(lower, '\n'); i >= 0 {
		first = lower[:i]
	}
	for _, text := range []string{first, lower} {
		for _, s := range offered {
			if s != "" && strings.Contains(text, strings.ToLower(s)) {
				return s
			}
		}
	}
	return FallbackSpecialization
}

// terms extracts lower-case words and word pairs worth looking up in the graph.
func terms(message string) []string {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	var out []string
	for i, w := range words {
		if len(w) > 3 {
			out = append(out, w)
		}
		if i > 0 {
			out = append(out, words[i-1]+" "+w)
		}
	}
	return out
}
