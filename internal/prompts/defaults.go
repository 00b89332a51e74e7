package prompts

import "brandmerch/internal/domain"

var defaults = map[string]domain.PromptTemplate{
	domain.PromptBrandEnhance: {
		Name: domain.PromptBrandEnhance,
		Template: `You are a brand strategist. Analyse the website below and describe its brand.

Website: {{url}}
Title: {{title}}
Description: {{description}}
Headings: {{headings}}
Content excerpt: {{body}}

Answer with a single JSON object and nothing else, using these keys:
"tone", "style", "sentiment", "audience", "industry", "personality" (short phrases)
and "keywords" (an array of up to 8 lowercase words).`,
		Variables: []string{"url", "title", "description", "headings", "body"},
	},
	domain.PromptConcept: {
		Name: domain.PromptConcept,
		Template: `Write a merchandise design concept for the brand "{{title}}".

Brand description: {{description}}
Brand colors: {{colors}}
Fonts: {{fonts}}
Tone: {{tone}}. Style: {{style}}. Audience: {{audience}}. Industry: {{industry}}.
Keywords: {{keywords}}

Describe in two short paragraphs the visual direction, the motif idea and how the
brand colors should be used on printed merchandise. Do not use markdown.`,
		Variables: []string{"title", "description", "colors", "fonts", "tone", "style", "audience", "industry", "keywords"},
	},
	domain.PromptConceptRegenerate: {
		Name: domain.PromptConceptRegenerate,
		Template: `Write a new merchandise design concept for the brand "{{title}}".

Brand description: {{description}}
Brand colors: {{colors}}
Tone: {{tone}}. Style: {{style}}. Audience: {{audience}}.

The previous concept was:
{{previous_concept}}

The new concept must take a clearly different creative direction from the
previous one while staying true to the brand. Two short paragraphs, no markdown.`,
		Variables: []string{"title", "description", "colors", "tone", "style", "audience", "previous_concept"},
	},
	domain.PromptMotif: {
		Name: domain.PromptMotif,
		Template: `Design a printable motif for the brand "{{title}}" based on this concept:
{{concept}}

Use only these colors: {{colors}}. The motif will first be printed on a {{product_name}}
({{print_zones}}). Flat vector style, transparent or plain background, no mockup,
no text other than the brand name, centred composition.`,
		Variables: []string{"title", "concept", "colors", "product_name", "print_zones"},
	},
	domain.PromptMotifRegenerate: {
		Name: domain.PromptMotifRegenerate,
		Template: `Design a different printable motif for the brand "{{title}}" based on this concept:
{{concept}}

The previous motif was described as: {{previous_motif}}
Take a new visual approach. Use only these colors: {{colors}}. Target product:
{{product_name}} ({{print_zones}}). Flat vector style, plain background, no mockup.`,
		Variables: []string{"title", "concept", "colors", "product_name", "print_zones", "previous_motif"},
	},
	domain.PromptProductMockup: {
		Name: domain.PromptProductMockup,
		Template: `Photorealistic product mockup of a {{product_name}} for the brand "{{title}}".
Apply this motif to the print zones ({{print_zones}}): {{motif}}
Reference motif image: {{motif_image_url}}
Product base image: {{base_image_url}}
Brand colors: {{colors}}. Constraints: {{constraints}}
Studio lighting, neutral background, product centred.`,
		Variables: []string{"product_name", "title", "print_zones", "motif", "motif_image_url", "base_image_url", "colors", "constraints"},
	},
}

// Default returns the built-in template for name.
func Default(name string) (domain.PromptTemplate, bool) {
	t, ok := defaults[name]
	if ok {
		t.Version = 1
		t.Variables = append([]string(nil), t.Variables...)
	}
	return t, ok
}

// Names lists the built-in template names.
func Names() []string {
	return []string{
		domain.PromptBrandEnhance,
		domain.PromptConcept,
		domain.PromptConceptRegenerate,
		domain.PromptMotif,
		domain.PromptMotifRegenerate,
		domain.PromptProductMockup,
	}
}
