package entities

import "sort"

const (
	// IsATypeID is the SNOMED CT "Is a" relationship type
	IsATypeID = "116680003"

	// InferredRelationship marks relationships produced by the classifier
	InferredRelationship = "INFERRED_RELATIONSHIP"
)

// RelationshipGroup is a set of attribute relationships sharing a role group
type RelationshipGroup struct {
	GroupID       int            `json:"groupId"`
	Relationships []Relationship `json:"relationships"`
}

// ActiveSynonyms returns the terms of active synonym descriptions in server order.
func (d *ConceptDetail) ActiveSynonyms() []string {
	out := []string{}
	if d == nil {
		return out
	}
	for _, desc := range d.Descriptions {
		if desc.Active && desc.Type == DescriptionTypeSynonym {
			out = append(out, desc.Term)
		}
	}
	return out
}

// ParentRelationships returns the active inferred "Is a" relationships.
func (d *ConceptDetail) ParentRelationships() []Relationship {
	return d.inferred(func(r Relationship) bool { return r.TypeID == IsATypeID })
}

// AttributeRelationships returns the active inferred relationships other than "Is a".
func (d *ConceptDetail) AttributeRelationships() []Relationship {
	return d.inferred(func(r Relationship) bool { return r.TypeID != IsATypeID })
}

// AttributeGroups groups attribute relationships by role group, ordered by group ID.
// Relationships keep their server order within a group.
func (d *ConceptDetail) AttributeGroups() []RelationshipGroup {
	byGroup := make(map[int][]Relationship)
	for _, r := range d.AttributeRelationships() {
		byGroup[r.GroupID] = append(byGroup[r.GroupID], r)
	}

	groups := make([]RelationshipGroup, 0, len(byGroup))
	for id, rels := range byGroup {
		groups = append(groups, RelationshipGroup{GroupID: id, Relationships: rels})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupID < groups[j].GroupID })
	return groups
}

func (d *ConceptDetail) inferred(keep func(Relationship) bool) []Relationship {
	out := []Relationship{}
	if d == nil {
		return out
	}
	for _, r := range d.Relationships {
		if r.Active && r.CharacteristicType == InferredRelationship && keep(r) {
			out = append(out, r)
		}
	}
	return out
}
