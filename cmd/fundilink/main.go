package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fundilink/FundiLink/app/repository"
	"github.com/fundilink/FundiLink/internal/pkg/cache"
	"github.com/fundilink/FundiLink/internal/pkg/database"
	"github.com/fundilink/FundiLink/internal/pkg/env"
	"github.com/fundilink/FundiLink/internal/pkg/jobqueue"
	"github.com/fundilink/FundiLink/internal/pkg/mpesa"
	"github.com/fundilink/FundiLink/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		AppName:   "FundiLink",
		BodyLimit: 1 * 1024 * 1024, // payment payloads are small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	if basePath := findBasePath(); basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	} else {
		log.Print("openapi spec not found, /docs/api/v1 disabled")
	}

	// ROUTER
	router.InstallRouter(app)

	// background reconciliation: probe stuck STK transactions, sweep
	// overdue invoices
	manager := jobqueue.NewManager(
		mpesa.NewServiceFromDB(database.GetDB()),
		repository.NewInvoiceRepository(database.GetDB()),
		2,
	)
	manager.Start()

	return app
}

// findBasePath locates the project root relative to the working directory so
// the binary can run from the repo root or from cmd/fundilink.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			return path
		}
	}
	return ""
}
