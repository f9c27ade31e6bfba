// Package storage provides keyed persistence for deployment-state records,
// partitioned into one logical container per (campaign id, entity kind).
//
// A container is persisted as a whole: Save reads the current container
// document, upserts the entity by id and writes the whole document back.
// The store therefore gives no serialization guarantee to concurrent writers
// of the same container; the artifact collector bounds this with an advisory
// lock (see deployment.Collector) so that at most one writer per campaign is
// active during collection.
package storage

import "time"

// Kind names the two deployment categories the core persists.
const (
	KindService = "service"
	KindClient  = "client"
)

// Attrs is an entity attribute document. Values may be nested maps, lists,
// numbers, strings or time.Time; backends must round-trip these losslessly
// (timestamps are stored as RFC3339 strings and coerced back on load).
type Attrs = map[string]interface{}

// EntityStore is the persistence contract for deployment state.
//
// All operations degrade rather than fail: on I/O trouble Save and Delete
// return false, Load returns (nil, false), LoadAll and ListCampaigns return
// empty slices, and the condition is logged. Nothing raises past this
// boundary.
type EntityStore interface {
	// Save upserts the entity under (campaignID, kind, id) by rewriting the
	// whole container. Returns true on success.
	Save(campaignID, kind, id string, attrs Attrs) bool
	// Load returns the attribute document for (campaignID, kind, id),
	// or (nil, false) if absent.
	Load(campaignID, kind, id string) (Attrs, bool)
	// LoadAll returns every entity document in the (campaignID, kind)
	// container. Each returned document carries its id under IDField.
	LoadAll(campaignID, kind string) []Attrs
	// Delete removes the entity by id. Returns true if it existed.
	Delete(campaignID, kind, id string) bool
	// ListCampaigns returns the ids of every campaign with at least one
	// persisted container.
	ListCampaigns() []string
}

// IDField is the reserved attribute key carrying the entity id in documents
// returned by LoadAll.
const IDField = "_id"

// TimeFormat is the wire format for time.Time attribute values.
const TimeFormat = time.RFC3339Nano
