package domain

// Presentation helpers kept apart from the state machine.

var statusLabels = map[Status]string{
	StatusScraping:         "Analyzing your website",
	StatusAwaitingApproval: "Brand details need your review",
	StatusConcept:          "Design concept",
	StatusMotif:            "Design motif",
	StatusProducts:         "Creating product mockups",
	StatusComplete:         "Mockups ready",
	StatusFailed:           "Something went wrong",
}

var statusProgress = map[Status]int{
	StatusScraping:         10,
	StatusAwaitingApproval: 20,
	StatusConcept:          40,
	StatusMotif:            60,
	StatusProducts:         80,
	StatusComplete:         100,
	StatusFailed:           0,
}

// Label returns the user-facing name of a status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Progress returns a coarse completion percentage for a status.
func (s Status) Progress() int {
	return statusProgress[s]
}
