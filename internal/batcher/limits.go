package batcher

// Limits are the size constraints of the delivery channel. Defaults mirror
// Discord webhook limits.
type Limits struct {
	MaxBlocksPerCall int `yaml:"maxBlocksPerCall"` // header included
	MaxCharsPerCall  int `yaml:"maxCharsPerCall"`  // sum over all blocks of a call
	ContentMax       int `yaml:"contentMax"`
	TitleMax         int `yaml:"titleMax"`
	DescriptionMax   int `yaml:"descriptionMax"`
	FieldNameMax     int `yaml:"fieldNameMax"`
	FieldValueMax    int `yaml:"fieldValueMax"`
	FooterMax        int `yaml:"footerMax"`
	MaxFields        int `yaml:"maxFields"`
	SummaryMax       int `yaml:"summaryMax"` // item description snippet, below DescriptionMax
}

// DefaultLimits returns the Discord webhook limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBlocksPerCall: 10,
		MaxCharsPerCall:  6000,
		ContentMax:       2000,
		TitleMax:         256,
		DescriptionMax:   4096,
		FieldNameMax:     256,
		FieldValueMax:    1024,
		FooterMax:        2048,
		MaxFields:        25,
		SummaryMax:       280,
	}
}

// WithDefaults fills zero values from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxBlocksPerCall <= 0 {
		l.MaxBlocksPerCall = d.MaxBlocksPerCall
	}
	// one slot is always taken by the header
	if l.MaxBlocksPerCall < 2 {
		l.MaxBlocksPerCall = 2
	}
	if l.MaxCharsPerCall <= 0 {
		l.MaxCharsPerCall = d.MaxCharsPerCall
	}
	if l.ContentMax <= 0 {
		l.ContentMax = d.ContentMax
	}
	if l.TitleMax <= 0 {
		l.TitleMax = d.TitleMax
	}
	if l.DescriptionMax <= 0 {
		l.DescriptionMax = d.DescriptionMax
	}
	if l.FieldNameMax <= 0 {
		l.FieldNameMax = d.FieldNameMax
	}
	if l.FieldValueMax <= 0 {
		l.FieldValueMax = d.FieldValueMax
	}
	if l.FooterMax <= 0 {
		l.FooterMax = d.FooterMax
	}
	if l.MaxFields <= 0 {
		l.MaxFields = d.MaxFields
	}
	if l.SummaryMax <= 0 {
		l.SummaryMax = d.SummaryMax
	}
	if l.SummaryMax > l.DescriptionMax {
		l.SummaryMax = l.DescriptionMax
	}
	return l
}
