package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/smartcity/simulator/internal/config"
	"github.com/smartcity/simulator/internal/delivery/amqp"
	"github.com/smartcity/simulator/internal/delivery/http"
	"github.com/smartcity/simulator/internal/network"
	"github.com/smartcity/simulator/internal/repository/postgres"
	"github.com/smartcity/simulator/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Road network
	net, err := network.DefaultGrid(cfg.LaneCapacity)
	if err != nil {
		log.Fatalf("Could not build road network: %v", err)
	}

	// Database connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Could not connect to database: %v", err)
			pool = nil
		}
	}

	// Dependency Injection: Repositories
	var repo service.SnapshotRepository
	if pool != nil {
		defer pool.Close()
		log.Println("Connected to PostgreSQL")
		repo = postgres.NewPostgresRepository(pool)
	} else {
		log.Println("Running with in-memory snapshot storage")
		repo = postgres.NewMockRepository()
	}

	// Dependency Injection: Messaging gateway
	var gateway service.Gateway
	if cfg.AMQPUrl != "" {
		g, err := amqp.Dial(cfg)
		if err != nil {
			log.Printf("Warning: Could not connect to broker: %v", err)
			gateway = amqp.NewNoop()
		} else {
			log.Println("Connected to RabbitMQ")
			gateway = g
		}
	} else {
		log.Println("Running without a message broker")
		gateway = amqp.NewNoop()
	}
	defer gateway.Close()

	// Dependency Injection: Simulation
	sim := service.NewSimulation(cfg, net, gateway, repo)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Traffic Simulator v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, sim, gateway, repo)

	// Tick loop
	simCtx, stopSim := context.WithCancel(context.Background())
	simDone := make(chan error, 1)
	go func() {
		simDone <- sim.Run(simCtx)
	}()

	// HTTP server
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	stopSim()
	if err := <-simDone; err != nil && err != context.Canceled {
		log.Printf("Simulation stopped with error: %v", err)
	}
	sim.WaitBackground()

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Simulator exited gracefully")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
