package domain

import "time"

// Prompt template names used by the pipeline.
const (
	PromptBrandEnhance      = "brand_enhance"
	PromptConcept           = "concept"
	PromptConceptRegenerate = "concept_regenerate"
	PromptMotif             = "motif"
	PromptMotifRegenerate   = "motif_regenerate"
	PromptProductMockup     = "product_mockup"
)

// PromptTemplate is a named, versioned text template with declared
// {{slot}} variables.
type PromptTemplate struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Template  string    `json:"template"`
	Variables []string  `json:"variables"`
	UpdatedAt time.Time `json:"updated_at"`
}
