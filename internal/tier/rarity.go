package tier

// Rarity is display metadata derived purely from the tier id. It never
// participates in evaluation or storage.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

var rarityByTier = map[string]Rarity{
	"shrimp":     RarityCommon,
	"crab":       RarityCommon,
	"fish":       RarityUncommon,
	"dolphin":    RarityRare,
	"shark":      RarityEpic,
	"whale":      RarityLegendary,
	"lp-bronze":  RarityCommon,
	"lp-silver":  RarityUncommon,
	"lp-gold":    RarityRare,
	"lp-diamond": RarityLegendary,
}

// TierRarity maps a tier id to its rarity, defaulting to common for tiers
// configured outside the built-in tables.
func TierRarity(tierID string) Rarity {
	if r, ok := rarityByTier[tierID]; ok {
		return r
	}
	return RarityCommon
}
