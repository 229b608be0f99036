package entities

// Term is a textual form of a concept in one language
type Term struct {
	Term string `json:"term"`
	Lang string `json:"lang"`
}

// Concept is the summary form returned by concept search, parent and child lookups
type Concept struct {
	ConceptID        string `json:"conceptId"`
	Active           bool   `json:"active"`
	DefinitionStatus string `json:"definitionStatus,omitempty"`
	ModuleID         string `json:"moduleId,omitempty"`
	EffectiveTime    string `json:"effectiveTime,omitempty"`
	FSN              Term   `json:"fsn"`
	PT               Term   `json:"pt"`
	IDAndFSNTerm     string `json:"idAndFsnTerm,omitempty"`
	IsLeafInferred   *bool  `json:"isLeafInferred,omitempty"`
}

// Description types as reported by the terminology server
const (
	DescriptionTypeSynonym = "SYNONYM"
	DescriptionTypeFSN     = "FSN"
)

// Description is one term attached to a concept
type Description struct {
	DescriptionID    string            `json:"descriptionId"`
	Active           bool              `json:"active"`
	Term             string            `json:"term"`
	Type             string            `json:"type"`
	Lang             string            `json:"lang"`
	TypeID           string            `json:"typeId,omitempty"`
	CaseSignificance string            `json:"caseSignificance,omitempty"`
	AcceptabilityMap map[string]string `json:"acceptabilityMap,omitempty"`
}

// ConceptRef is the minimal form of a concept embedded in a relationship
type ConceptRef struct {
	ConceptID string `json:"conceptId"`
	PT        Term   `json:"pt"`
	FSN       Term   `json:"fsn"`
}

// Relationship is an attribute or is-a link from the concept to a target
type Relationship struct {
	RelationshipID     string     `json:"relationshipId"`
	Active             bool       `json:"active"`
	TypeID             string     `json:"typeId"`
	Type               ConceptRef `json:"type"`
	Target             ConceptRef `json:"target"`
	CharacteristicType string     `json:"characteristicType"`
	GroupID            int        `json:"groupId"`
}

// ConceptDetail is the full browser view of a concept. It is replaced wholesale
// on every selection and never mutated after it has been fetched.
type ConceptDetail struct {
	ConceptID             string         `json:"conceptId"`
	Active                bool           `json:"active"`
	DefinitionStatus      string         `json:"definitionStatus"`
	ModuleID              string         `json:"moduleId"`
	EffectiveTime         string         `json:"effectiveTime"`
	FSN                   Term           `json:"fsn"`
	PT                    Term           `json:"pt"`
	DescendantCount       int            `json:"descendantCount"`
	StatedDescendantCount int            `json:"statedDescendantCount"`
	Descriptions          []Description  `json:"descriptions"`
	Relationships         []Relationship `json:"relationships"`
}

// SearchParams are the user's search criteria. Values are compared structurally.
type SearchParams struct {
	Term            string `json:"term"`
	OrganSystem     string `json:"organSystem"`
	ProcedureMethod string `json:"procedureMethod"`
}

// SearchResult is one page of concept search results
type SearchResult struct {
	Items  []Concept `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// IsValidConceptID reports whether id looks like an SCTID: 6 to 18 digits
// without a leading zero.
func IsValidConceptID(id string) bool {
	if len(id) < 6 || len(id) > 18 || id[0] == '0' {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
