package entity

// PageRecord is the extraction output for a single page.
type PageRecord struct {
	Index  int         `json:"index"` // 1-based
	Blocks []TextBlock `json:"blocks"`
	Images []PageImage `json:"images,omitempty"`
}

// TextBlock is one line of text in reading order.
// X is the left edge (indent); Y grows downwards from the top of the page.
type TextBlock struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PageImage is an embedded image. Y is its vertical position when known;
// images without a position sort after every text block of the page.
type PageImage struct {
	Name        string  `json:"name"`
	MIMEType    string  `json:"mime_type"`
	Data        []byte  `json:"-"`
	Y           float64 `json:"y"`
	HasPosition bool    `json:"has_position"`
}
