package http

import (
	"time"

	"trustgate/internal/query"
	"trustgate/internal/storage"
	"trustgate/internal/trust"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

type registryResponse struct {
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Context        string     `json:"context"`
	LastIngestedAt *time.Time `json:"last_ingested_at"`
	EntryCount     int64      `json:"entry_count"`
}

type registriesResponse struct {
	Registries []registryResponse `json:"registries"`
}

func fromRegistryInfos(infos []storage.RegistryInfo) registriesResponse {
	registries := make([]registryResponse, 0, len(infos))
	for _, info := range infos {
		registries = append(registries, registryResponse{
			Slug:           info.Registry.Slug,
			Name:           info.Registry.Name,
			Description:    info.Registry.Description,
			Context:        info.Registry.Context,
			LastIngestedAt: info.Registry.LastIngestedAt,
			EntryCount:     info.EntryCount,
		})
	}
	return registriesResponse{Registries: registries}
}

type provenanceResponse struct {
	Registry   string    `json:"registry"`
	RecordID   string    `json:"record_id"`
	ComputedAt time.Time `json:"computed_at"`
}

type trustResultResponse struct {
	EntityID     string               `json:"entity_id"`
	Context      string               `json:"context"`
	Score        float64              `json:"score"`
	DecisionHint string               `json:"decision_hint"`
	Provenance   []provenanceResponse `json:"provenance"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

func fromTrustResult(result trust.Result, generatedAt time.Time) trustResultResponse {
	provenance := make([]provenanceResponse, 0, len(result.Provenance))
	for _, p := range result.Provenance {
		provenance = append(provenance, provenanceResponse{
			Registry:   p.Registry,
			RecordID:   p.RecordID.String(),
			ComputedAt: p.ComputedAt,
		})
	}
	return trustResultResponse{
		EntityID:     result.EntityID,
		Context:      result.Context,
		Score:        result.Score,
		DecisionHint: string(result.Hint),
		Provenance:   provenance,
		GeneratedAt:  generatedAt,
	}
}

type addressResponse struct {
	Results []trustResultResponse `json:"results"`
}

func fromAddressResult(result *query.AddressResult) addressResponse {
	results := make([]trustResultResponse, 0, len(result.Results))
	for _, r := range result.Results {
		results = append(results, fromTrustResult(r, result.GeneratedAt))
	}
	return addressResponse{Results: results}
}

type rankedEntityResponse struct {
	EntityID     string    `json:"entity_id"`
	DisplayName  string    `json:"display_name"`
	Context      string    `json:"context"`
	Score        float64   `json:"score"`
	DecisionHint string    `json:"decision_hint"`
	Registry     string    `json:"registry"`
	ComputedAt   time.Time `json:"computed_at"`
}

type topResponse struct {
	Context  string                 `json:"context"`
	Limit    int                    `json:"limit"`
	Count    int                    `json:"count"`
	Entities []rankedEntityResponse `json:"entities"`
}

func fromTopResult(result *query.TopResult) topResponse {
	entities := make([]rankedEntityResponse, 0, len(result.Entities))
	for _, e := range result.Entities {
		entities = append(entities, rankedEntityResponse{
			EntityID:     e.EntityID.String(),
			DisplayName:  e.DisplayName,
			Context:      e.Context,
			Score:        e.Score,
			DecisionHint: string(e.Hint),
			Registry:     e.Registry,
			ComputedAt:   e.ComputedAt,
		})
	}
	return topResponse{
		Context:  result.Context,
		Limit:    result.Limit,
		Count:    len(entities),
		Entities: entities,
	}
}
