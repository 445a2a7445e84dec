package domain

import "time"

// SavedKind distinguishes persisted copies from share hand-offs.
// Values include SavedKindSave and SavedKindShare.
type SavedKind string

const (
	SavedKindSave  SavedKind = "save"
	SavedKindShare SavedKind = "share"
)

// Valid reports whether k is a known kind.
func (k SavedKind) Valid() bool {
	return k == SavedKindSave || k == SavedKindShare
}

// SavedImage records an image whose bytes were stored by a save or share action.
// Fields include the listing identifiers, storage metadata and content metadata read from the image header.
type SavedImage struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	ImageID    string    `gorm:"type:text;not null;index:idx_saved_images_image_kind,unique" json:"image_id"`
	Kind       SavedKind `gorm:"type:text;not null;index:idx_saved_images_image_kind,unique" json:"kind"`
	Author     string    `gorm:"type:text" json:"author"`
	SourceURL  string    `gorm:"type:text" json:"source_url"`
	StorageKey string    `gorm:"type:text" json:"storage_key"`
	URL        string    `gorm:"type:text" json:"url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format"`
	FileSize   int64     `json:"file_size"`
	MD5Hash    string    `gorm:"type:text;index:idx_saved_images_md5" json:"md5_hash"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for SavedImage.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (SavedImage) TableName() string {
	return "saved_images"
}
