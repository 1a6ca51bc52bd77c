package stacjson

import "github.com/jobrunner/stacman/internal/domain"

// CatalogDocument returns the STAC document for the root catalog with the
// given links. The result is meant for JSON encoding.
func CatalogDocument(c *domain.Catalog, links []Link) any {
	return newCatalogDoc(c, links)
}

// CollectionDocument returns the STAC document for a collection.
func CollectionDocument(c *domain.Collection, links []Link) any {
	return newCollectionDoc(c, links)
}

// ItemDocument returns the STAC document for an item. Asset hrefs are
// written as stored.
func ItemDocument(item *domain.Item, links []Link) any {
	return newItemDoc(item, links, func(href string) string { return href })
}

// NewLink creates a link with a JSON media type.
func NewLink(rel, href, title string) Link {
	return Link{Rel: rel, Href: href, Type: string(domain.MediaJSON), Title: title}
}
