package fitting

import (
	"fmt"
	"sort"
)

// ClothingItem is a garment image bound to exactly one slot.
type ClothingItem struct {
	ID       string
	Slot     BodyRegion
	Image    Image
	Analysis *ClothingAnalysis
	Modifier string
}

// Region returns the region reported by the analysis, falling back to the
// slot the garment was placed in.
func (c ClothingItem) Region() BodyRegion {
	if c.Analysis != nil && c.Analysis.BodyPartID.Valid() {
		return c.Analysis.BodyPartID
	}
	return c.Slot
}

// Analyzed reports whether an analysis has been attached.
func (c ClothingItem) Analyzed() bool {
	return c.Analysis != nil
}

// Outfit holds at most one ClothingItem per slot.
// It is not safe for concurrent use.
type Outfit struct {
	items map[BodyRegion]*ClothingItem
}

func NewOutfit() *Outfit {
	return &Outfit{items: make(map[BodyRegion]*ClothingItem)}
}

// Put stores item in its slot, replacing and returning any previous occupant.
func (o *Outfit) Put(item ClothingItem) (*ClothingItem, error) {
	if !item.Slot.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, item.Slot)
	}
	prev := o.items[item.Slot]
	o.items[item.Slot] = &item
	return prev, nil
}

// Get returns a copy of the item in slot.
func (o *Outfit) Get(slot BodyRegion) (ClothingItem, bool) {
	item, ok := o.items[slot]
	if !ok {
		return ClothingItem{}, false
	}
	return *item, true
}

// Remove deletes the item in slot. It reports whether anything was removed.
func (o *Outfit) Remove(slot BodyRegion) bool {
	if _, ok := o.items[slot]; !ok {
		return false
	}
	delete(o.items, slot)
	return true
}

// SetModifier replaces the free-text override of the item in slot.
func (o *Outfit) SetModifier(slot BodyRegion, modifier string) error {
	item, ok := o.items[slot]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotEmpty, slot)
	}
	item.Modifier = modifier
	return nil
}

// AttachAnalysis sets the analysis of the item with the given id. It returns
// false when that item is no longer part of the outfit.
func (o *Outfit) AttachAnalysis(itemID string, analysis *ClothingAnalysis) bool {
	for _, item := range o.items {
		if item.ID == itemID {
			item.Analysis = analysis
			return true
		}
	}
	return false
}

// Items returns copies of all items in slot-iteration order.
func (o *Outfit) Items() []ClothingItem {
	items := make([]ClothingItem, 0, len(o.items))
	for _, item := range o.items {
		items = append(items, *item)
	}
	SortItems(items)
	return items
}

func (o *Outfit) Len() int {
	return len(o.items)
}

func (o *Outfit) Clear() {
	o.items = make(map[BodyRegion]*ClothingItem)
}

// SortItems orders items by slot in slot-iteration order.
func SortItems(items []ClothingItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Slot.Index() < items[j].Slot.Index()
	})
}

// HasLayeredTorso reports whether both an inner and an outer torso garment
// are present, by analysed region.
func HasLayeredTorso(items []ClothingItem) bool {
	var inner, outer bool
	for _, item := range items {
		switch item.Region() {
		case RegionTorsoInner:
			inner = true
		case RegionTorsoOuter:
			outer = true
		}
	}
	return inner && outer
}
