package domain

// ImageRecord is one entry of the image listing API.
// Records are values: they are never mutated after decoding and carry no identity beyond ID.
type ImageRecord struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}
