package domain

import "strings"

// Facet is one fixed semantic dimension along which two games are compared.
// The set is closed; adding a facet is a migration that requires backfilling
// embeddings for every stored game.
type Facet string

const (
	FacetAesthetic  Facet = "aesthetic"
	FacetAtmosphere Facet = "atmosphere"
	FacetMechanics  Facet = "mechanics"
	FacetNarrative  Facet = "narrative"
	FacetDynamics   Facet = "dynamics"
)

// FacetAll is the pseudo-facet selecting weighted multi-facet matching.
const FacetAll = "all"

// EmbeddingDim is the fixed dimensionality of every facet vector. A change
// here is a breaking migration, not a runtime condition.
const EmbeddingDim = 1536

func AllFacets() []Facet {
	return []Facet{FacetAesthetic, FacetAtmosphere, FacetMechanics, FacetNarrative, FacetDynamics}
}

func (f Facet) Valid() bool {
	switch f {
	case FacetAesthetic, FacetAtmosphere, FacetMechanics, FacetNarrative, FacetDynamics:
		return true
	}
	return false
}

// Column is the game-table column holding this facet's vector.
func (f Facet) Column() string { return "embedding_" + string(f) }

// FacetWeights is the fixed weight map for "all"-facet matching. Weights sum
// to 1. Missing facets on either side of a pair contribute no weight; the
// combined score renormalizes over the facets both games share.
var FacetWeights = map[Facet]float64{
	FacetAesthetic:  0.25,
	FacetAtmosphere: 0.15,
	FacetMechanics:  0.25,
	FacetNarrative:  0.20,
	FacetDynamics:   0.15,
}

// facetRuleVersions tracks the extraction rule revision per facet. A stored
// embedding computed under an older version is stale and must be recomputed,
// never silently trusted.
var facetRuleVersions = map[Facet]int{
	FacetAesthetic:  1,
	FacetAtmosphere: 1,
	FacetMechanics:  1,
	FacetNarrative:  1,
	FacetDynamics:   1,
}

func (f Facet) RuleVersion() int { return facetRuleVersions[f] }

// Tag vocabularies each facet emphasizes when extracting its text blob.
var facetTagHints = map[Facet][]string{
	FacetAesthetic: {
		"pixel", "art", "hand-drawn", "voxel", "minimalist", "stylized",
		"retro", "anime", "realistic", "cartoony", "colorful", "2d", "3d",
	},
	FacetAtmosphere: {
		"atmospheric", "dark", "cozy", "relaxing", "horror", "creepy",
		"surreal", "dreamlike", "lonely", "ambient", "moody", "wholesome",
	},
	FacetMechanics: {
		"roguelike", "roguelite", "deckbuild", "platformer", "puzzle",
		"metroidvania", "turn-based", "real-time", "crafting", "building",
		"strategy", "shooter", "simulation", "card", "physics", "survival",
	},
	FacetNarrative: {
		"story", "narrative", "visual novel", "choices", "rpg", "dialogue",
		"lore", "mystery", "drama", "interactive fiction",
	},
	FacetDynamics: {
		"fast-paced", "difficult", "casual", "co-op", "multiplayer",
		"singleplayer", "competitive", "sandbox", "open world", "permadeath",
		"short", "replay",
	},
}

// ExtractText derives this facet's text blob from a game's fields. The rule
// is deterministic: same game fields, same output. An empty result means the
// facet has no signal for this game, which is a valid state, not an error.
func (f Facet) ExtractText(g *Game) string {
	if g == nil {
		return ""
	}

	title := strings.TrimSpace(g.Title)
	short := strings.TrimSpace(g.ShortDescription)
	long := strings.TrimSpace(g.Description)
	tags := g.TagList()

	hinted := matchTags(tags, facetTagHints[f])

	var parts []string
	switch f {
	case FacetAesthetic:
		parts = buildParts(title, short, hinted)
	case FacetAtmosphere:
		parts = buildParts(title, short, hinted)
	case FacetMechanics:
		// Mechanics lean on the long description where gameplay
		// systems are usually spelled out.
		parts = buildParts(title, long, hinted)
	case FacetNarrative:
		parts = buildParts(title, long, hinted)
	case FacetDynamics:
		parts = buildParts("", short, hinted)
	default:
		return ""
	}

	// A bare title carries no facet signal on its own.
	if len(parts) == 1 && parts[0] == title && title != "" {
		return ""
	}
	return strings.Join(parts, "\n")
}

func buildParts(title, body string, hinted []string) []string {
	var parts []string
	if title != "" {
		parts = append(parts, title)
	}
	if body != "" {
		parts = append(parts, body)
	}
	if len(hinted) > 0 {
		parts = append(parts, "Tags: "+strings.Join(hinted, ", "))
	}
	return parts
}

func matchTags(tags []string, hints []string) []string {
	if len(tags) == 0 || len(hints) == 0 {
		return nil
	}
	var out []string
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, hint := range hints {
			if strings.Contains(lower, hint) {
				out = append(out, tag)
				break
			}
		}
	}
	return out
}
