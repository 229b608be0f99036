package ecl

// FacetType names one filter dimension of the search form.
type FacetType string

const (
	FacetOrganSystem     FacetType = "organSystem"
	FacetProcedureMethod FacetType = "procedureMethod"
)

// FacetEntry is one selectable value of a facet.
type FacetEntry struct {
	Key        string `json:"value"`
	Label      string `json:"label"`
	Expression string `json:"ecl"`
}

// Entries are listed in the order the search form shows them.
var organSystems = []FacetEntry{
	{"brainAndSpinal", "Brain and spinal cord", "(<< 783207002 OR << 389079005)"},
	{"nerves", "Nerves", "<< 3057000"},
	{"endocrineGlands", "Endocrine glands", "<< 387910009"},
	{"eye", "Eye", "<< 371398005"},
	{"earNoseThroat", "Ear, nose, throat", "<< 385383008"},
	{"lowerRespiratoryTract", "Lower respiratory tract", "<< 400141005"},
	{"heartAndPericardium", "Heart and pericardium", "<< 409708007"},
	{"bloodVessels", "Blood vessels", "<< 59820001"},
	{"lymphaticSystem", "Lymphatic system", "<< 89890002"},
	{"upperGi", "Upper gastrointestinal tract", "<< 62834003"},
	{"lowerGi", "Lower gastrointestinal tract", "<< 5668004"},
	{"rectumAndAnus", "Rectum and anus", "<< 281088000"},
	{"liverAndBiliary", "Liver and biliary system", "<< 303270005"},
	{"pancreas", "Pancreas", "<< 15776009"},
	{"kidneyAndUreter", "Kidney and ureter", "<< 304582006"},
	{"bladderAndUrethra", "Urinary bladder and urethra", "<< 19787009"},
	{"maleGenitalOrgans", "Male genital organs", "<< 699882006"},
	{"femaleGenitalOrgans", "Female genital organs", "<< 699879001"},
	{"bonesAndJoints", "Bones and joints", "<< 306721000"},
	{"skeletalMuscle", "Skeletal muscle", "<< 79984008"},
	{"skin", "Skin", "<< 48075008"},
	{"breast", "Breast", "<< 76752008"},
}

var procedureMethods = []FacetEntry{
	{"biopsy", "Biopsy", "<< 129314006"},
	{"destruction", "Destruction", "<< 129382001"},
	{"examination", "Examination", "<< 302199004"},
	{"imaging", "Imaging", "<< 360037004"},
	{"fixation", "Fixation", "<< 129371009"},
	{"introduction", "Introduction", "<< 129325002"},
	{"opening", "Opening", "<< 312336005"},
	{"removal", "Removal", "<< 129303008"},
	{"repair", "Repair", "<< 257903006"},
	{"replacement", "Replacement", "<< 282089006"},
	{"structuralModification", "Structural modification", "<< 303894001"},
}

var catalogs = map[FacetType]map[string]string{
	FacetOrganSystem:     index(organSystems),
	FacetProcedureMethod: index(procedureMethods),
}

func index(entries []FacetEntry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Expression
	}
	return m
}

// Lookup returns the ECL subexpression for a facet key. A missing key means
// the facet contributes no constraint.
func Lookup(facet FacetType, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	expr, ok := catalogs[facet][key]
	return expr, ok
}

// Entries returns a copy of the facet's values in display order.
func Entries(facet FacetType) []FacetEntry {
	var src []FacetEntry
	switch facet {
	case FacetOrganSystem:
		src = organSystems
	case FacetProcedureMethod:
		src = procedureMethods
	default:
		return nil
	}
	out := make([]FacetEntry, len(src))
	copy(out, src)
	return out
}
