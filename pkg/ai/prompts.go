package ai

// ExtractPrompt instructs the model to pull entities and relationships out
// of one chunk of text. Format arguments: max triplet count, chunk text.
const ExtractPrompt = `-Goal-
Given a text document, extract up to %d knowledge triplets, each consisting of two entities and their relationship.
Strictly follow the rules for entity extraction, naming conventions, and relation extraction as outlined below.

-Steps-

1. Entity Extraction
Identify all entities that participate in meaningful, explicit relationships in the text.
For each entity, extract:
- entity_name: Use the most complete, canonical, and standardized form of the entity name as explicitly mentioned in the text. Always capitalize properly. Avoid abbreviations, nicknames, or partially mentioned forms. If the same entity appears in different forms, always use the most descriptive and complete form.
- entity_type: Assign a type or class to the entity, using the most accurate and descriptive label based on the text (e.g., "Person", "Company", "Event", "Technology", "Time", "Location", "Product", "Concept").
- entity_description: Provide a concise explanation of the entity's properties, significance, or role, as directly supported by the text.

2. Relation Extraction
For each pair of entities identified in step 1, extract a relationship ONLY if it is clearly and explicitly described in the text.
For each relationship, extract:
- source_entity: Use the canonical entity_name from step 1.
- target_entity: Use the canonical entity_name from step 1.
- relation: Use lowercase snake_case format (e.g., "works_for", "has_award", "produced_by"). Use general, timeless relationships. Do NOT invent or infer unstated relationships.
- relationship_description: Briefly explain, using evidence from the text, why the relationship exists.

Examples:
- "Adam" -> "Microsoft": relation = "works_for"
- "Adam" -> "Best Talent": relation = "has_award"
- "Microsoft Word" -> "Microsoft": relation = "produced_by"

3. Output Formatting
- Return the result in valid JSON format with two keys: 'entities' (list of entity objects) and 'relationships' (list of relationship objects).
- Exclude any text outside the JSON structure (no explanations or comments).
- If no entities or relationships are identified, return empty lists: { "entities": [], "relationships": [] }.

-Example Output-
{
  "entities": [
    {
      "entity_name": "Adam",
      "entity_type": "Person",
      "entity_description": "Adam is a software engineer who has worked at Microsoft since 2009."
    },
    {
      "entity_name": "Microsoft",
      "entity_type": "Company",
      "entity_description": "Microsoft is a technology company."
    }
  ],
  "relationships": [
    {
      "source_entity": "Adam",
      "target_entity": "Microsoft",
      "relation": "works_for",
      "relationship_description": "Adam is a software engineer at Microsoft."
    }
  ]
}

-Real Data-
######################
text: %s
######################
output:`

// QueryPrompt grounds a single-turn answer in retrieved graph context.
// Format argument: the serialized subgraph context.
const QueryPrompt = `You are an assistant answering questions using the knowledge graph context below.
Base your answer only on the provided context. Provide short, direct answers.
Do not say "Based on the graph" or refer to the source, just answer plainly.

# Graph context
%s`

// OutOfCoverageWarning prefixes chat answers whose question is not covered
// by any graph content.
const OutOfCoverageWarning = "This topic isn't part of the current graph. Consider uploading more context. Here's a short answer from general knowledge: "

// ChatSystemPrompt steers multi-turn conversations grounded in graph
// context. Format argument: the serialized subgraph context.
const ChatSystemPrompt = `You are an assistant grounded in a knowledge graph.
Answer using the graph context below together with the conversation so far.
Always provide short, direct answers. Do not say "Based on the graph" or refer to the source, just answer plainly.

# Graph context
%s`

// GeneralKnowledgePrompt is used when a chat question falls outside the
// graph's coverage and the answer comes from general knowledge instead.
const GeneralKnowledgePrompt = `You are a helpful assistant. The user's question is not covered by their uploaded documents.
Answer briefly from general knowledge. Always provide short, direct answers.`
