package common

import "time"

// DefaultRelationLabel is used for relations the extraction model returned
// without a label.
const DefaultRelationLabel = "related_to"

// Entity represents a node in the knowledge graph. The canonical name is the
// sole identity key: upserting an entity with an existing name overwrites its
// type and description rather than creating a duplicate.
type Entity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Relation represents a directed edge between two entities, keyed by the
// (source, target, label) tuple. Endpoints are stored by canonical name and
// are not validated at insert time; dangling edges are dropped at export.
type Relation struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Triplet is one (source entity, relation, target entity) fact, the unit
// returned by extraction and by full-graph enumeration.
type Triplet struct {
	Source       string `json:"source"`
	SourceType   string `json:"source_type"`
	SourceDesc   string `json:"source_desc"`
	Target       string `json:"target"`
	TargetType   string `json:"target_type"`
	TargetDesc   string `json:"target_desc"`
	Relation     string `json:"relation"`
	RelationDesc string `json:"relation_desc"`
}

// ExportNode is the wire representation of an entity in graph.json.
type ExportNode struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ExportEdge is the wire representation of a relation in graph.json. Only
// edges whose endpoints exist as nodes at export time are materialized.
type ExportEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
	Description  string `json:"description"`
}

// GraphExport is the node/edge projection served to clients and written to
// graph.json.
type GraphExport struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

// UpdateLogEntry records one incremental update to a tenant's graph. Entries
// are append-only and owned by the persistence layer for that tenant.
type UpdateLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	GraphID    string    `json:"graph_id"`
	AddedNodes int       `json:"added_nodes"`
	AddedEdges int       `json:"added_edges"`
	Notes      string    `json:"notes"`
}
