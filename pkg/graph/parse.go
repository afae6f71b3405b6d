package graph

import (
	"fmt"

	"graphrag/pkg/ai"
	"graphrag/pkg/common"
)

type extractEntity struct {
	EntityName        string `json:"entity_name"`
	EntityType        string `json:"entity_type"`
	EntityDescription string `json:"entity_description"`
}

type extractRelationship struct {
	SourceEntity            string `json:"source_entity"`
	TargetEntity            string `json:"target_entity"`
	Relation                string `json:"relation"`
	RelationshipDescription string `json:"relationship_description"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities"`
	Relationships []extractRelationship `json:"relationships"`
}

// ParseExtraction recovers entities and relations from free-form model
// output. The first balanced JSON object in the response is decoded, with
// repair fallbacks for malformed JSON; anything around it is discarded as
// commentary. Individual items missing their required keys are skipped
// rather than failing the batch.
//
// On undecodable input the returned lists are empty and the error carries
// the extraction-failure kind; callers recover locally so a bad chunk never
// aborts a build.
func ParseExtraction(raw string) ([]common.Entity, []common.Relation, error) {
	entities := []common.Entity{}
	relations := []common.Relation{}

	obj := ai.FirstJSONObject(raw)
	if obj == "" {
		return entities, relations, fmt.Errorf("%w: no JSON object in model response", common.ErrExtraction)
	}

	var res extractResponse
	if err := ai.UnmarshalFlexible(obj, &res); err != nil {
		return entities, relations, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}

	for _, e := range res.Entities {
		// Name is the identity key; items without one are unusable.
		if e.EntityName == "" {
			continue
		}
		entities = append(entities, common.Entity{
			Name:        e.EntityName,
			Type:        e.EntityType,
			Description: e.EntityDescription,
		})
	}
	for _, r := range res.Relationships {
		if r.SourceEntity == "" || r.TargetEntity == "" {
			continue
		}
		label := r.Relation
		if label == "" {
			label = common.DefaultRelationLabel
		}
		relations = append(relations, common.Relation{
			Source:      r.SourceEntity,
			Target:      r.TargetEntity,
			Label:       label,
			Description: r.RelationshipDescription,
		})
	}

	return entities, relations, nil
}
