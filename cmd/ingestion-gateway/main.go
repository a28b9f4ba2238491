package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/ingestiongateway/internal/gcp"
	"github.com/Lllllllleong/ingestiongateway/internal/httpapi"
	"github.com/Lllllllleong/ingestiongateway/internal/models"
	"github.com/Lllllllleong/ingestiongateway/internal/services"
)

const defaultTarget = "IngestionGateway"

var (
	gateway *services.GatewayFunction
	router  http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// A local .env is optional; deployed functions get their environment from the platform.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP(defaultTarget, serveHTTP)
	functions.CloudEvent("IngestStoredObject", ingestStoredObject)
}

func main() {
	// Serving the router as the target lets it see the full request path.
	if os.Getenv("FUNCTION_TARGET") == "" {
		os.Setenv("FUNCTION_TARGET", defaultTarget)
	}
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("Functions framework stopped.", "error", err)
		os.Exit(1)
	}
}

func initGateway() error {
	once.Do(func() {
		gateway, initErr = services.NewGateway(context.Background())
		if initErr == nil {
			router = httpapi.NewRouter(httpapi.NewHandler(gateway, slog.Default()))
		}
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
	}
	return initErr
}

// serveHTTP is the HTTP entry point for uploads and URLs.
func serveHTTP(w http.ResponseWriter, r *http.Request) {
	if err := initGateway(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "service is not configured"})
		return
	}
	router.ServeHTTP(w, r)
}

// ingestStoredObject handles GCS object finalize events.
func ingestStoredObject(ctx context.Context, e cloudevents.Event) error {
	if err := initGateway(); err != nil {
		return err
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	resp, err := gateway.ProcessObject(ctx, gcsEvent)
	if err != nil {
		return err
	}
	if resp != nil {
		slog.Info("Stored object exported.", "gcsBucket", gcsEvent.Bucket, "gcsObject", gcsEvent.Name, "key", resp.S3Key)
	}
	return nil
}
