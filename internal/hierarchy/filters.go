package hierarchy

// FilterAll is the wildcard value matching everything for a filter key.
const FilterAll = "All"

// FilterSet narrows which leaf entities count toward aggregates and
// visibility. Keys compose with AND semantics; each is either FilterAll or
// an exact match against the node (or, for Region, an ancestor).
type FilterSet struct {
	Region     string `json:"region" yaml:"region"`
	Location   string `json:"location" yaml:"location"`
	Datacentre string `json:"datacentre" yaml:"datacentre"`
}

// NewFilterSet returns the all-wildcards filter set.
func NewFilterSet() FilterSet {
	return FilterSet{Region: FilterAll, Location: FilterAll, Datacentre: FilterAll}
}

// Normalized replaces empty keys with the wildcard so partially-specified
// payloads behave like all-pass on the missing keys.
func (f FilterSet) Normalized() FilterSet {
	if f.Region == "" {
		f.Region = FilterAll
	}
	if f.Location == "" {
		f.Location = FilterAll
	}
	if f.Datacentre == "" {
		f.Datacentre = FilterAll
	}
	return f
}

// IsAll reports whether every key is the wildcard.
func (f FilterSet) IsAll() bool {
	return f.Region == FilterAll && f.Location == FilterAll && f.Datacentre == FilterAll
}

// FilterOptions are the selectable values per filter key, each list sorted
// and prefixed with the wildcard.
type FilterOptions struct {
	Regions     []string `json:"regions"`
	Locations   []string `json:"locations"`
	Datacentres []string `json:"datacentres"`
}
