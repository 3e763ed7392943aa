package fitting

// Image is an encoded image together with its MIME type.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// WornItem describes one item the model is currently wearing.
type WornItem struct {
	BodyPartID  BodyRegion `json:"bodyPartId" validate:"required,bodyregion"`
	Description string     `json:"description"`
	IsPresent   bool       `json:"isPresent"`
}

// ModelAnalysis is the structured description of a model photograph.
// It is produced once per model image and reused until the image changes.
type ModelAnalysis struct {
	BodyType            string     `json:"bodyType" validate:"required"`
	SkinTone            string     `json:"skinTone" validate:"required"`
	HairStyle           string     `json:"hairStyle"`
	HairColor           string     `json:"hairColor"`
	Pose                string     `json:"pose" validate:"required"`
	CurrentClothing     []WornItem `json:"currentClothing" validate:"dive"`
	DistinctiveFeatures []string   `json:"distinctiveFeatures"`
	Background          string     `json:"background"`
}

// ClothingAnalysis is the structured description of a single garment image.
type ClothingAnalysis struct {
	Type       string     `json:"type" validate:"required"`
	Category   string     `json:"category"`
	BodyPartID BodyRegion `json:"bodyPartId" validate:"required,bodyregion"`
	Color      string     `json:"color"`
	Material   string     `json:"material"`
	Pattern    string     `json:"pattern"`
	Style      string     `json:"style"`
	Fit        string     `json:"fit"`
	Details    []string   `json:"details"`
}
