package main

import (
	"flag"
	"log"

	"rentcore-backend/shared/config"
	"rentcore-backend/shared/database"
)

func main() {
	withDemo := flag.Bool("demo", false, "also create the demo organization")
	flag.Parse()

	log.Println("🌱 Starting database seeding...")

	// Load configuration
	config.LoadConfig()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	// Run seeding
	if err := database.SeedDatabase(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	if *withDemo {
		if err := database.SeedDemoData(); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	log.Println("✅ Database seeding completed successfully!")
}
