// Package handlers implements the HTTP API: asset ingestion, catalog
// queries, lazy preview delivery and range-addressable blob streaming.
package handlers

import (
	"meagle/internal/catalog"
	"meagle/internal/derivative"
	"meagle/internal/media"
)

type Handlers struct {
	catalog  *catalog.Catalog
	store    *derivative.Store
	pipeline *media.Pipeline
}

func New(cat *catalog.Catalog, store *derivative.Store, pipeline *media.Pipeline) *Handlers {
	return &Handlers{
		catalog:  cat,
		store:    store,
		pipeline: pipeline,
	}
}
