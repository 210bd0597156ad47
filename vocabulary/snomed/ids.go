package snomed

// Hierarchy and metadata concepts.
const (
	// IsA is the subtype relationship type. IS-A edges form the hierarchy the
	// transitive closure is built from and always stay ungrouped.
	IsA = "116680003"

	// Root is the SNOMED CT root concept.
	Root = "138875005"

	// ConceptModelAttribute is the top of the attribute hierarchy.
	ConceptModelAttribute = "410662002"

	// RoleGroup is the concept used to express relationship groups in OWL.
	RoleGroup = "609096000"
)

// Attribute types commonly found in logical templates.
const (
	// FindingSite relates a clinical finding to the body site affected.
	FindingSite = "363698007"

	// AssociatedMorphology relates a finding to its morphologic abnormality.
	AssociatedMorphology = "116676008"

	// CausativeAgent relates a finding to the organism or substance causing it.
	CausativeAgent = "246075003"

	// PathologicalProcess relates a finding to its underlying process.
	PathologicalProcess = "370135005"

	// Method relates a procedure to the action performed.
	Method = "260686004"

	// ProcedureSiteDirect relates a procedure to the site acted on directly.
	ProcedureSiteDirect = "405813007"

	// UsingSubstance relates a procedure to a substance used in it.
	UsingSubstance = "424361007"

	// DirectSubstance relates a procedure to the substance acted on.
	DirectSubstance = "363701004"

	// HasActiveIngredient relates a product to its active ingredient.
	HasActiveIngredient = "127489000"

	// HasDoseForm relates a product to its dose form.
	HasDoseForm = "411116001"
)
