package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierRarity(t *testing.T) {
	assert.Equal(t, RarityCommon, TierRarity("shrimp"))
	assert.Equal(t, RarityLegendary, TierRarity("whale"))
	assert.Equal(t, RarityRare, TierRarity("lp-gold"))
	assert.Equal(t, RarityCommon, TierRarity("custom-tier-from-config"))
}
