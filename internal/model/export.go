package model

// ExportCheckpoint is the global incremental export position.
type ExportCheckpoint struct {
	LastExportTs string `json:"lastExportTs"`
}

// FactRecord is one flattened click in the exported fact stream.
type FactRecord struct {
	Ts        string `json:"ts"`
	ShortID   string `json:"shortId"`
	Referer   string `json:"referer"`
	Device    string `json:"device"`
	IsSuspect bool   `json:"isSuspect"` // signature rule only
	IPHash    string `json:"ipHash"`
	UserAgent string `json:"userAgent"`
}
