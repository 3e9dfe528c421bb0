package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nickyhof/SchemaVC"
	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	port := flag.Int("port", 7420, "TCP port to listen on")
	baseDir := flag.String("baseDir", "", "Base directory for persistence (memory if empty)")
	opsDB := flag.String("opsDB", "", "DuckDB file for merge operation state (in-memory if empty)")
	jwtSecret := flag.String("jwtSecret", "", "HMAC secret for JWT authentication (auth disabled if empty)")
	jwtIssuer := flag.String("jwtIssuer", "", "Required JWT issuer claim")
	jwtAudience := flag.String("jwtAudience", "", "Required JWT audience claim")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SchemaVC Server v%s\n", Version)
		return
	}

	// Merge operation state lives outside the git store
	var operations ps.OperationStore
	if *opsDB == "" {
		operations = ps.NewMemoryOperationStore()
	} else {
		log.Printf("Using DuckDB operation store: %s", *opsDB)
		store, err := ps.NewDuckDBOperationStore(*opsDB)
		if err != nil {
			log.Fatalf("Failed to open operation store: %v", err)
		}
		defer store.Close()
		operations = store
	}

	// Initialize persistence
	var instance *SchemaVC.Instance
	if *baseDir == "" {
		log.Println("Using memory persistence")
		persistence, err := ps.NewMemoryPersistence()
		if err != nil {
			log.Fatalf("Failed to initialize memory persistence: %v", err)
		}
		instance = SchemaVC.Open(&persistence)
	} else {
		log.Printf("Using file persistence: %s", *baseDir)
		persistence, err := ps.NewFilePersistence(*baseDir, operations)
		if err != nil {
			log.Fatalf("Failed to initialize file persistence: %v", err)
		}
		instance = SchemaVC.Open(&persistence)
	}

	var authConfig *AuthConfig
	if *jwtSecret != "" {
		authConfig = &AuthConfig{
			Enabled:   true,
			JWTSecret: *jwtSecret,
			Issuer:    *jwtIssuer,
			Audience:  *jwtAudience,
		}
		log.Println("JWT authentication enabled")
	}

	identity := core.Identity{
		Name:  "SchemaVC Server",
		Email: "server@schemavc.local",
	}

	server := NewServer(instance, identity, authConfig)
	addr := fmt.Sprintf(":%d", *port)

	if err := server.Start(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Print banner
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   SchemaVC Server v%-17s  ║\n", Version)
	fmt.Println("║   Schema Version Control Engine       ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d\n", *port)
	fmt.Println("Send JSON requests (one per line), 'quit' to disconnect")
	fmt.Println()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	server.Stop()
	log.Println("Server stopped")
}
