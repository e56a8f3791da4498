package response

import (
	"time"

	"consult-engine/internal/usecase/queries"

	"github.com/google/uuid"
)

type OpenSlotResponse struct {
	ConsultantID uuid.UUID `json:"consultant_id"`
	StartAt      time.Time `json:"start_at"`
	DurationMin  int32     `json:"duration_min"`
	ServiceType  string    `json:"service_type"`
}

type ConsultantSuggestionResponse struct {
	ConsultantID uuid.UUID          `json:"consultant_id"`
	Score        float64            `json:"score"`
	NextSlots    []OpenSlotResponse `json:"next_slots"`
}

func FromOpenSlots(slots []queries.OpenSlot) []OpenSlotResponse {
	out := make([]OpenSlotResponse, len(slots))
	for i, s := range slots {
		out[i] = OpenSlotResponse{
			ConsultantID: s.ConsultantID,
			StartAt:      s.StartAt,
			DurationMin:  s.DurationMin,
			ServiceType:  s.ServiceType,
		}
	}
	return out
}

func FromSuggestions(suggestions []queries.ConsultantSuggestion) []ConsultantSuggestionResponse {
	out := make([]ConsultantSuggestionResponse, len(suggestions))
	for i, s := range suggestions {
		out[i] = ConsultantSuggestionResponse{
			ConsultantID: s.ConsultantID,
			Score:        s.Score,
			NextSlots:    FromOpenSlots(s.NextSlots),
		}
	}
	return out
}
