package store

import "gorm.io/gorm/clause"

// onConflictUpdateAppText builds the upsert clause for PutAppText: on a
// primary-key collision, overwrite every mutable column.
func onConflictUpdateAppText() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "value", "description", "updated_at"}),
	}
}
