package types

// Theme is the catalog's view of a downloadable theme.
type Theme struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Author      string   `json:"author"`
	DownloadURL string   `json:"download_url"`
	PreviewURLs []string `json:"preview_urls,omitempty"`
}

// ThemeMetadata is the metadata.json shipped at the root of an extracted theme.
type ThemeMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
}

const ThemeMetadataFile = "metadata.json"
