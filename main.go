package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"personachat/config"
	"personachat/db"
	"personachat/handlers"
	"personachat/llm"
	"personachat/middleware"
	"personachat/orchestrator"
	"personachat/registry"
	"personachat/selector"
)

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Initialize MongoDB connection
	uri := config.GetMongoDBURI()
	if uri == "" {
		log.Fatal("MONGODB_URI environment variable not set")
	}
	if err := db.InitMongoDB(uri); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer db.Close()
	db.CreateChatIndexes()

	ctx := context.Background()
	gen, err := llm.NewGeminiGenerator(ctx, config.GetGeminiAPIKey(), config.GetGeminiModel())
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}

	reg := registry.New(gen)
	if seedFile := config.GetCharacterSeedFile(); seedFile != "" {
		count, err := reg.LoadSeedFile(seedFile)
		if err != nil {
			log.Printf("Warning: failed to load character seed file: %v", err)
		} else {
			log.Printf("Loaded %d seed characters from %s", count, seedFile)
		}
	}

	sel := selector.New(gen)
	orch := orchestrator.New(gen, reg)
	api := handlers.NewAPI(gen, reg, sel, orch, db.MongoChatStore{})

	// Set up HTTP handlers
	http.HandleFunc("/character", middleware.EnableCORS(api.CreateCharacterHandler))
	http.HandleFunc("/characters", middleware.EnableCORS(api.ListCharactersHandler))
	http.HandleFunc("/group", middleware.EnableCORS(api.CreateGroupHandler))
	http.HandleFunc("/groups", middleware.EnableCORS(api.ListGroupsHandler))
	http.HandleFunc("/group/delete", middleware.EnableCORS(api.DeleteGroupHandler))
	http.HandleFunc("/group/stats", middleware.EnableCORS(api.GroupStatsHandler))
	http.HandleFunc("/group/message", middleware.EnableCORS(api.GroupMessageHandler))
	http.HandleFunc("/autonomous/start", middleware.EnableCORS(api.StartAutonomousHandler))
	http.HandleFunc("/autonomous/step", middleware.EnableCORS(api.StepAutonomousHandler))
	http.HandleFunc("/autonomous/stop", middleware.EnableCORS(api.StopAutonomousHandler))
	http.HandleFunc("/autonomous/status", middleware.EnableCORS(api.AutonomousStatusHandler))
	http.HandleFunc("/history", middleware.EnableCORS(api.HistoryHandler))

	fmt.Println("Server running on http://localhost:8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}
