package graph

import (
	"sort"
	"sync"

	"graphrag/pkg/common"
)

type edgeKey struct {
	source string
	target string
	label  string
}

// Store is an in-memory mutable property graph: entities keyed by canonical
// name and relations keyed by the (source, target, label) tuple. It is not a
// transactional engine; callers that mutate one store concurrently must
// serialize themselves, the internal lock only keeps single operations
// consistent.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]common.Entity
	edges map[edgeKey]common.Relation
}

// NewStore returns an empty graph store.
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]common.Entity),
		edges: make(map[edgeKey]common.Relation),
	}
}

// UpsertEntity creates the node if absent; if present, the new type and
// description overwrite the old ones (last-write-wins, no merging).
// Entities with an empty name are ignored. Reports whether a new node was
// created.
func (s *Store) UpsertEntity(name, entityType, description string) bool {
	if name == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.nodes[name]
	s.nodes[name] = common.Entity{
		Name:        name,
		Type:        entityType,
		Description: description,
	}
	return !existed
}

// UpsertRelation creates or overwrites the edge keyed by (source, target,
// label). Endpoint existence is not validated at insert time; dangling edges
// are excluded at enumeration and export. An empty label falls back to the
// related_to sentinel. Reports whether a new edge was created.
func (s *Store) UpsertRelation(source, target, label, description string) bool {
	if source == "" || target == "" {
		return false
	}
	if label == "" {
		label = common.DefaultRelationLabel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey{source: source, target: target, label: label}
	_, existed := s.edges[key]
	s.edges[key] = common.Relation{
		Source:      source,
		Target:      target,
		Label:       label,
		Description: description,
	}
	return !existed
}

// NodeCount returns the number of entities in the store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of relations in the store, dangling included.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Entities returns all entities sorted by name.
func (s *Store) Entities() []common.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entities := make([]common.Entity, 0, len(s.nodes))
	for _, e := range s.nodes {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	return entities
}

// Entity returns the entity with the given canonical name, if present.
func (s *Store) Entity(name string) (common.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.nodes[name]
	return e, ok
}

// Relations returns all relations, dangling included, sorted by
// (source, target, label).
func (s *Store) Relations() []common.Relation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	relations := make([]common.Relation, 0, len(s.edges))
	for _, r := range s.edges {
		relations = append(relations, r)
	}
	sortRelations(relations)
	return relations
}

// Load hydrates the store from a persisted entity and relation list,
// replacing any current content.
func (s *Store) Load(entities []common.Entity, relations []common.Relation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]common.Entity, len(entities))
	s.edges = make(map[edgeKey]common.Relation, len(relations))
	for _, e := range entities {
		if e.Name == "" {
			continue
		}
		s.nodes[e.Name] = e
	}
	for _, r := range relations {
		if r.Source == "" || r.Target == "" {
			continue
		}
		label := r.Label
		if label == "" {
			label = common.DefaultRelationLabel
		}
		r.Label = label
		s.edges[edgeKey{source: r.Source, target: r.Target, label: label}] = r
	}
}

// Triplets enumerates every relation whose endpoints currently exist as
// nodes, joined with the endpoint entities. Edges referencing missing nodes
// are excluded, not errored. The result is sorted for stable output.
func (s *Store) Triplets() []common.Triplet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	triplets := make([]common.Triplet, 0, len(s.edges))
	for _, r := range s.edges {
		source, ok := s.nodes[r.Source]
		if !ok {
			continue
		}
		target, ok := s.nodes[r.Target]
		if !ok {
			continue
		}
		triplets = append(triplets, common.Triplet{
			Source:       source.Name,
			SourceType:   source.Type,
			SourceDesc:   source.Description,
			Target:       target.Name,
			TargetType:   target.Type,
			TargetDesc:   target.Description,
			Relation:     r.Label,
			RelationDesc: r.Description,
		})
	}
	sort.Slice(triplets, func(i, j int) bool {
		a, b := triplets[i], triplets[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Relation < b.Relation
	})
	return triplets
}

// Export materializes the node/edge projection served as graph.json. Edges
// with a missing endpoint are silently dropped. Output ordering is
// deterministic so repeated exports of an unchanged store are identical.
func (s *Store) Export() common.GraphExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]common.ExportNode, 0, len(s.nodes))
	for _, e := range s.nodes {
		nodes = append(nodes, common.ExportNode{
			ID:          e.Name,
			Type:        e.Type,
			Description: e.Description,
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]common.ExportEdge, 0, len(s.edges))
	for _, r := range s.edges {
		if _, ok := s.nodes[r.Source]; !ok {
			continue
		}
		if _, ok := s.nodes[r.Target]; !ok {
			continue
		}
		edges = append(edges, common.ExportEdge{
			Source:       r.Source,
			Target:       r.Target,
			Relationship: r.Label,
			Description:  r.Description,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Relationship < b.Relationship
	})

	return common.GraphExport{Nodes: nodes, Edges: edges}
}

func sortRelations(relations []common.Relation) {
	sort.Slice(relations, func(i, j int) bool {
		a, b := relations[i], relations[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Label < b.Label
	})
}
