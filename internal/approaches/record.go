package approaches

import "encoding/json"

// CollectionRecord is the persisted shape of a user's collection: one row
// per user with the byQuestion map stored as a JSON document.
type CollectionRecord struct {
	UserID              string `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName         string `gorm:"column:display_name;size:320;not null;default:''"`
	DocumentJSON        string `gorm:"column:document_json;type:text;not null"`
	TotalCount          int    `gorm:"column:total_count;not null;default:0"`
	LastModifiedSeconds int64  `gorm:"column:last_modified_s;not null"`
	Version             int64  `gorm:"column:version;not null;default:1"`
}

// TableName provides the explicit table binding for GORM.
func (CollectionRecord) TableName() string {
	return "user_approaches"
}

func recordFromCollection(collection *Collection) (CollectionRecord, error) {
	document, err := json.Marshal(collection.ByQuestion)
	if err != nil {
		return CollectionRecord{}, err
	}
	return CollectionRecord{
		UserID:              collection.UserID,
		DisplayName:         collection.DisplayName,
		DocumentJSON:        string(document),
		TotalCount:          collection.TotalCount,
		LastModifiedSeconds: collection.LastModifiedSeconds,
		Version:             collection.Version,
	}, nil
}

func collectionFromRecord(record CollectionRecord) (*Collection, error) {
	byQuestion := map[string][]Approach{}
	if record.DocumentJSON != "" {
		if err := json.Unmarshal([]byte(record.DocumentJSON), &byQuestion); err != nil {
			return nil, err
		}
	}
	return &Collection{
		UserID:              record.UserID,
		DisplayName:         record.DisplayName,
		ByQuestion:          byQuestion,
		TotalCount:          record.TotalCount,
		LastModifiedSeconds: record.LastModifiedSeconds,
		Version:             record.Version,
	}, nil
}
