// Package prompt turns stage inputs into prompt text. Builders are pure: no I/O, no state.
package prompt

import (
	"strings"

	"github.com/joseph-ayodele/guideline-extractor/constants"
)

// Builder constructs the prompt for each pipeline stage.
type Builder interface {
	Layout(document string) string
	Segmentation(core string) string
	CoreExtraction(atom, reference, evidence string) string
	EdgeExtraction(edge string) string
	ContentJudge(content string) string
}

// Default is the built-in Builder.
type Default struct{}

var _ Builder = Default{}

func tableRules() string {
	return strings.Join([]string{
		"Output ONLY knowledge rows, one per line, no header, no commentary, no markdown.",
		"Each row has exactly six TAB-separated fields in this order: " + strings.Join(constants.Columns, ", ") + ".",
		"entity: the clinical subject (disease, drug, population, procedure).",
		"property: the attribute being stated about the entity.",
		"value: the stated content of that attribute, verbatim where possible.",
		"entityTag and valueTag: short type labels for entity and value (e.g. Disease, Drug, Dose, Population).",
		"level: the recommendation strength / evidence grade attached to the statement, empty if none.",
		"Leave a field empty rather than inventing content. Never put a TAB inside a field.",
	}, "\n")
}

// Layout asks the model to split a whole guideline into the five zones as a JSON object.
func (Default) Layout(document string) string {
	var b strings.Builder
	b.WriteString("You are analysing the layout of a medical clinical practice guideline.\n")
	b.WriteString("Split the document below into five disjoint zones and return ONLY a JSON object with exactly these string keys:\n")
	b.WriteString(`- "base": front matter, title, authors, scope, target population, methods` + "\n")
	b.WriteString(`- "core": the main recommendations and clinical questions` + "\n")
	b.WriteString(`- "evidence": definitions of evidence quality and recommendation strength grades` + "\n")
	b.WriteString(`- "other": anything that fits none of the other zones` + "\n")
	b.WriteString(`- "reference": the bibliography` + "\n")
	b.WriteString("Copy text verbatim. Use an empty string for a zone that is absent.\n\n")
	b.WriteString("Document:\n")
	b.WriteString(document)
	return b.String()
}

// Segmentation asks the model to cut the core zone into self-contained clinical-question atoms.
func (Default) Segmentation(core string) string {
	var b strings.Builder
	b.WriteString("The text below holds the recommendations of a clinical guideline.\n")
	b.WriteString("Segment it into self-contained clinical questions: each unit must carry the question, its recommendations and their supporting statements, so it can be read on its own.\n")
	b.WriteString(`Return ONLY a JSON object {"atom": [<unit text>, ...], "total": <number of units>}. Keep document order and copy text verbatim.` + "\n\n")
	b.WriteString("Text:\n")
	b.WriteString(core)
	return b.String()
}

// CoreExtraction asks for knowledge rows from one atom, with the reference list and the
// evidence-grade definitions as context.
func (Default) CoreExtraction(atom, reference, evidence string) string {
	parts := []string{
		"Extract structured knowledge from the clinical question below.",
		tableRules(),
		"Use the grading definitions to fill 'level'; use the references only to resolve citations.",
		"",
		"Clinical question:",
		atom,
		"",
		"Evidence and recommendation grading definitions:",
		evidence,
		"",
		"References:",
		reference,
	}
	return strings.Join(parts, "\n")
}

// EdgeExtraction asks for knowledge rows from the non-core zones.
func (Default) EdgeExtraction(edge string) string {
	parts := []string{
		"Extract structured knowledge about the guideline itself (title, issuing body, publication date, scope, target users, grading system, key references) from the text below.",
		tableRules(),
		"",
		"Text:",
		edge,
	}
	return strings.Join(parts, "\n")
}

// ContentJudge asks whether text is taken from a professional medical guideline.
func (Default) ContentJudge(content string) string {
	parts := []string{
		"You are a medical guideline analysis assistant.",
		"Decide whether the text below is content from a professional medical guideline.",
		"Answer with a single word: True if it is, False if it is not.",
		"",
		"Text:",
		content,
	}
	return strings.Join(parts, "\n")
}
