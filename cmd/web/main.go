package main

import (
	"fmt"
	"log"

	"github.com/pdx-proptype/internal/artifact"
	"github.com/pdx-proptype/internal/audit"
	"github.com/pdx-proptype/internal/config"
	"github.com/pdx-proptype/internal/pipeline"
	"github.com/pdx-proptype/internal/web"
)

func main() {
	config.LoadEnv()

	fmt.Println("=== Property Type Prediction Web Interface ===")

	artifactPath := config.GetEnv("MODEL_ARTIFACTS", "model_artifacts.gob")
	host := config.GetEnv("WEB_HOST", "localhost")
	port := config.GetEnvInt("WEB_PORT", 8080)

	bundle, err := artifact.Load(artifactPath)
	if err != nil {
		log.Fatalf("Failed to load model artifacts: %v", err)
	}
	fmt.Printf("Artifacts: %s (%d features, %d trees)\n",
		artifactPath, len(bundle.FeatureNames), len(bundle.Forest.Trees))

	var store *audit.Store
	if audit.Configured() {
		store, err = audit.Open()
		if err != nil {
			log.Printf("Warning: audit store unavailable: %v", err)
		} else {
			defer store.Close()
			fmt.Println("Run auditing enabled")
		}
	}

	fmt.Printf("Server: http://%s:%d\n", host, port)
	if err := web.NewServer(pipeline.New(bundle), store, host, port).Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
