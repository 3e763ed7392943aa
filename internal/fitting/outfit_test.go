package fitting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutfit_PutReplacesOccupiedSlot(t *testing.T) {
	o := NewOutfit()

	prev, err := o.Put(ClothingItem{ID: "a", Slot: RegionLegs, Modifier: "baggy"})
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = o.Put(ClothingItem{ID: "b", Slot: RegionLegs})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "a", prev.ID)

	items := o.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
	assert.Empty(t, items[0].Modifier)
}

func TestOutfit_ItemsInSlotOrder(t *testing.T) {
	o := NewOutfit()
	for _, slot := range []BodyRegion{RegionFeet, RegionTorsoOuter, RegionHead, RegionTorsoInner} {
		_, err := o.Put(ClothingItem{ID: string(slot), Slot: slot})
		require.NoError(t, err)
	}

	var got []BodyRegion
	for _, item := range o.Items() {
		got = append(got, item.Slot)
	}
	assert.Equal(t, []BodyRegion{RegionHead, RegionTorsoInner, RegionTorsoOuter, RegionFeet}, got)
}

func TestOutfit_PutRejectsUnknownSlot(t *testing.T) {
	o := NewOutfit()
	_, err := o.Put(ClothingItem{ID: "x", Slot: BodyRegion("tail")})
	assert.ErrorIs(t, err, ErrInvalidRegion)
	assert.Equal(t, 0, o.Len())
}

func TestOutfit_ModifierAndRemove(t *testing.T) {
	o := NewOutfit()
	_, _ = o.Put(ClothingItem{ID: "j", Slot: RegionTorsoOuter})

	require.NoError(t, o.SetModifier(RegionTorsoOuter, "unbuttoned"))
	item, ok := o.Get(RegionTorsoOuter)
	require.True(t, ok)
	assert.Equal(t, "unbuttoned", item.Modifier)

	assert.ErrorIs(t, o.SetModifier(RegionFeet, "x"), ErrSlotEmpty)

	assert.True(t, o.Remove(RegionTorsoOuter))
	assert.False(t, o.Remove(RegionTorsoOuter))
	assert.Equal(t, 0, o.Len())
}

func TestOutfit_AttachAnalysisOnlyToCurrentItem(t *testing.T) {
	o := NewOutfit()
	_, _ = o.Put(ClothingItem{ID: "old", Slot: RegionLegs})
	_, _ = o.Put(ClothingItem{ID: "new", Slot: RegionLegs})

	assert.False(t, o.AttachAnalysis("old", &ClothingAnalysis{Type: "jeans"}))
	assert.True(t, o.AttachAnalysis("new", &ClothingAnalysis{Type: "chinos"}))

	item, _ := o.Get(RegionLegs)
	require.NotNil(t, item.Analysis)
	assert.Equal(t, "chinos", item.Analysis.Type)
}

func TestClothingItem_RegionPrefersAnalysis(t *testing.T) {
	item := ClothingItem{Slot: RegionHead}
	assert.Equal(t, RegionHead, item.Region())

	item.Analysis = &ClothingAnalysis{BodyPartID: RegionFeet}
	assert.Equal(t, RegionFeet, item.Region())
}

func TestHasLayeredTorso(t *testing.T) {
	inner := ClothingItem{Slot: RegionTorsoInner}
	outer := ClothingItem{Slot: RegionTorsoOuter}
	assert.True(t, HasLayeredTorso([]ClothingItem{inner, outer}))
	assert.False(t, HasLayeredTorso([]ClothingItem{inner}))
}

func TestParseBodyRegion(t *testing.T) {
	r, err := ParseBodyRegion("Torso-Inner")
	require.NoError(t, err)
	assert.Equal(t, RegionTorsoInner, r)

	_, err = ParseBodyRegion("elbow")
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestParseResolutionTier(t *testing.T) {
	tier, err := ParseResolutionTier("")
	require.NoError(t, err)
	assert.Equal(t, TierStandard, tier)

	tier, err = ParseResolutionTier("premium")
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)
	assert.True(t, tier.RequiresSecret())

	tier, err = ParseResolutionTier("2K")
	require.NoError(t, err)
	assert.Equal(t, TierEnhanced, tier)
	assert.False(t, tier.RequiresSecret())

	_, err = ParseResolutionTier("8K")
	assert.ErrorIs(t, err, ErrUnknownTier)
}
