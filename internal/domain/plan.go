package domain

// IngestPlan lists collections and the sources to catalog into them.
type IngestPlan struct {
	Catalog     CatalogDefaults
	Collections []CollectionPlan
}

// CatalogDefaults optionally renames the root catalog.
type CatalogDefaults struct {
	ID          string
	Title       string
	Description string
}

// CollectionPlan declares one collection and its items.
type CollectionPlan struct {
	ID          string
	Title       string
	Description string
	Extent      *Extent
	Items       []ItemPlan
}

// ItemPlan is one source plus its overrides.
type ItemPlan struct {
	Source    string
	Overrides ItemOverrides
}

// ItemCount returns the number of items the plan will add.
func (p IngestPlan) ItemCount() int {
	n := 0
	for _, c := range p.Collections {
		n += len(c.Items)
	}
	return n
}
