package database

import (
	"log"

	"gorm.io/gorm"
)

// cleanupDuplicatePriceRecords removes duplicate card_price_records entries before the unique constraint is added
// This runs BEFORE AutoMigrate to prevent constraint violations
func cleanupDuplicatePriceRecords(db *gorm.DB) error {
	if !db.Migrator().HasTable("card_price_records") {
		return nil
	}

	// The feed's "base" sentinel and NULL both mean the unstamped card
	result := db.Exec(`UPDATE card_price_records SET variant_pattern = '' WHERE variant_pattern IS NULL OR variant_pattern = 'base'`)
	if result.Error != nil {
		log.Printf("Warning: failed to normalize variant_pattern values: %v", result.Error)
	}

	// Keep the most recently inserted row per (card, pattern)
	result = db.Exec(`
		DELETE FROM card_price_records
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM card_price_records
			GROUP BY card_id, variant_pattern
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate card_price_records entries", result.RowsAffected)
	}

	return nil
}

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := migrateCollectionVocabulary(db); err != nil {
		return err
	}
	return migrateCollectionPatterns(db)
}

// migrateCollectionVocabulary rewrites the short legacy condition codes and
// printing names into the current variant/condition values. Safe to run
// repeatedly since it only touches rows still holding legacy values.
func migrateCollectionVocabulary(db *gorm.DB) error {
	if !db.Migrator().HasTable("collection_items") {
		return nil
	}

	result := db.Exec(`
		UPDATE collection_items
		SET condition = CASE condition
			WHEN 'M' THEN 'mint'
			WHEN 'NM' THEN 'near_mint'
			WHEN 'EX' THEN 'lightly_played'
			WHEN 'LP' THEN 'lightly_played'
			WHEN 'GD' THEN 'moderately_played'
			WHEN 'PL' THEN 'heavily_played'
			WHEN 'PR' THEN 'damaged'
			ELSE condition
		END
		WHERE condition IN ('M', 'NM', 'EX', 'LP', 'GD', 'PL', 'PR')
	`)
	if result.Error != nil {
		log.Printf("Warning: failed to migrate legacy collection conditions: %v", result.Error)
	} else if result.RowsAffected > 0 {
		log.Printf("Migrated %d legacy collection conditions", result.RowsAffected)
	}

	if db.Migrator().HasColumn("collection_items", "printing") {
		log.Println("Migrating collection_items: printing -> variant")
		result = db.Exec(`
			UPDATE collection_items
			SET variant = CASE printing
				WHEN 'Foil' THEN 'holo'
				WHEN 'Reverse Holofoil' THEN 'reverse_holo'
				WHEN '1st Edition' THEN 'first_edition'
				ELSE 'normal'
			END
			WHERE variant IS NULL OR variant = '' OR variant = 'normal'
		`)
		if result.Error != nil {
			log.Printf("Warning: failed to migrate collection_items printing column: %v", result.Error)
		} else {
			log.Printf("Migrated %d collection_items rows", result.RowsAffected)
			// one-shot: a later variant change must not be overwritten on the next start
			if err := db.Migrator().DropColumn("collection_items", "printing"); err != nil {
				log.Printf("Warning: failed to drop legacy collection_items printing column: %v", err)
			}
		}
	}

	db.Exec(`UPDATE collection_items SET condition = 'near_mint' WHERE condition IS NULL OR condition = ''`)
	db.Exec(`UPDATE collection_items SET variant = 'normal' WHERE variant IS NULL OR variant = ''`)
	db.Exec(`UPDATE collection_items SET quantity = 1 WHERE quantity IS NULL OR quantity < 1`)
	return nil
}

func migrateCollectionPatterns(db *gorm.DB) error {
	if !db.Migrator().HasColumn("collection_items", "variant_pattern") {
		return nil
	}
	result := db.Exec(`UPDATE collection_items SET variant_pattern = '' WHERE variant_pattern IS NULL OR variant_pattern = 'base'`)
	if result.Error != nil {
		log.Printf("Warning: failed to normalize collection variant_pattern values: %v", result.Error)
	}
	return nil
}
