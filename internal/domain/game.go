package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Facet embedding state, tracked per game in the facet_status column so
// "never computed", "computed", and "computed but empty" stay
// distinguishable.
const (
	FacetStatePending  = "pending"
	FacetStateComputed = "computed"
	FacetStateNoSignal = "no_signal"
)

type FacetState struct {
	State       string    `json:"state"`
	RuleVersion int       `json:"rule_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Game struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AppID            int64          `gorm:"column:app_id;not null;uniqueIndex" json:"app_id"`
	Title            string         `gorm:"column:title;not null;default:''" json:"title"`
	ShortDescription string         `gorm:"column:short_description" json:"short_description"`
	Description      string         `gorm:"column:description" json:"description"`
	MediaURLs        datatypes.JSON `gorm:"column:media_urls;type:jsonb" json:"media_urls"`
	Developers       datatypes.JSON `gorm:"column:developers;type:jsonb" json:"developers"`
	Tags             datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags"`
	RawPayload       datatypes.JSON `gorm:"column:raw_payload;type:jsonb" json:"-"`
	Released         bool           `gorm:"column:released;not null;default:false" json:"released"`
	ReleaseDate      *time.Time     `gorm:"column:release_date" json:"release_date,omitempty"`
	ReleaseDateText  string         `gorm:"column:release_date_text" json:"release_date_text,omitempty"`

	EmbeddingAesthetic  *pgvector.Vector `gorm:"column:embedding_aesthetic;type:vector(1536)" json:"-"`
	EmbeddingAtmosphere *pgvector.Vector `gorm:"column:embedding_atmosphere;type:vector(1536)" json:"-"`
	EmbeddingMechanics  *pgvector.Vector `gorm:"column:embedding_mechanics;type:vector(1536)" json:"-"`
	EmbeddingNarrative  *pgvector.Vector `gorm:"column:embedding_narrative;type:vector(1536)" json:"-"`
	EmbeddingDynamics   *pgvector.Vector `gorm:"column:embedding_dynamics;type:vector(1536)" json:"-"`

	FacetStatus datatypes.JSON `gorm:"column:facet_status;type:jsonb" json:"facet_status"`

	Suggestions            datatypes.JSON `gorm:"column:suggestions;type:jsonb" json:"suggestions"`
	SuggestionsVersion     int            `gorm:"column:suggestions_version;not null;default:0" json:"-"`
	SuggestionsRefreshedAt *time.Time     `gorm:"column:suggestions_refreshed_at" json:"suggestions_refreshed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Game) TableName() string { return "game" }

func (g *Game) TagList() []string        { return decodeStrings(g.Tags) }
func (g *Game) DeveloperList() []string  { return decodeStrings(g.Developers) }
func (g *Game) MediaURLList() []string   { return decodeStrings(g.MediaURLs) }

// PrimaryImageURL is the first media URL, used as the visual context for
// suggestion generation. Empty when the game has no media.
func (g *Game) PrimaryImageURL() string {
	urls := g.MediaURLList()
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// EmbeddingFor returns the stored vector for a facet, nil when absent.
func (g *Game) EmbeddingFor(f Facet) *pgvector.Vector {
	switch f {
	case FacetAesthetic:
		return g.EmbeddingAesthetic
	case FacetAtmosphere:
		return g.EmbeddingAtmosphere
	case FacetMechanics:
		return g.EmbeddingMechanics
	case FacetNarrative:
		return g.EmbeddingNarrative
	case FacetDynamics:
		return g.EmbeddingDynamics
	}
	return nil
}

// FacetStates decodes the per-facet embedding state map. Facets never
// touched are absent from the map (state "pending" by omission).
func (g *Game) FacetStates() map[Facet]FacetState {
	out := map[Facet]FacetState{}
	if len(g.FacetStatus) == 0 {
		return out
	}
	_ = json.Unmarshal(g.FacetStatus, &out)
	return out
}

// SuggestionList decodes the persisted suggestion list. A missing or
// malformed column decodes as empty rather than failing a read path.
func (g *Game) SuggestionList() []Suggestion {
	if len(g.Suggestions) == 0 {
		return nil
	}
	var out []Suggestion
	if err := json.Unmarshal(g.Suggestions, &out); err != nil {
		return nil
	}
	return out
}

// HasFullRecord reports whether ingestion has populated this game beyond a
// placeholder row. Ingestion without force is a no-op when this holds.
func (g *Game) HasFullRecord() bool {
	return g != nil && g.Title != ""
}

func EncodeJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(raw)
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
