// @title           Facturación SIFEN API
// @version         1.0
// @description     Emisión de documentos electrónicos SIFEN (Paraguay): talonario, ciclo de vida y lotes.
// @BasePath        /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/facturacion-sifen/docs"
	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/application/numbering"
	"github.com/jhoicas/facturacion-sifen/internal/application/usecase"
	"github.com/jhoicas/facturacion-sifen/internal/domain/repository"
	domsifen "github.com/jhoicas/facturacion-sifen/internal/domain/sifen"
	"github.com/jhoicas/facturacion-sifen/internal/domain/tax"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/facturacion-sifen/internal/infrastructure/pdf"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/postgres"
	infrasifen "github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen/signer"
	httpRouter "github.com/jhoicas/facturacion-sifen/internal/interfaces/http"
	"github.com/jhoicas/facturacion-sifen/pkg/config"
	"github.com/jhoicas/facturacion-sifen/pkg/logger"
)

// Decimales de los montos calculados (líneas e IVA) antes del redondeo de moneda.
const amountPlaces = 2

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("sifen_env", cfg.SIFEN.Env).
		Str("storage", cfg.Storage.Driver).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Persistencia: PostgreSQL en despliegues; memoria para desarrollo local.
	var store repository.Store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		store = memory.New()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
	}

	// Certificado del contribuyente (.p12 o .pem): firma XMLDSig y TLS mutuo con la SET.
	cert, err := signer.Load(cfg.SIFEN.CertPath, cfg.SIFEN.CertKeyPath, cfg.SIFEN.CertPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("cargar certificado SIFEN")
	}
	if signer.IsEmpty(cert) {
		log.Warn().Msg("SIFEN_CERT_PATH vacío: los documentos no podrán firmarse")
	} else {
		log.Info().Str("cert_sha256", signer.CertDigest(cert.Leaf)).Msg("certificado SIFEN cargado")
	}

	// Transporte SOAP: solo si el ambiente entrega a la SET ("test" o "prod").
	// En "dev" los documentos quedan firmados sin enviarse.
	var transport billing.BatchTransport
	if cfg.SIFEN.SendsToAuthority() {
		transport = infrasifen.NewSOAPBatchClient(infrasifen.SOAPConfig{
			Env:     cfg.SIFEN.Env,
			Cert:    cert,
			Timeout: cfg.SIFEN.RequestTimeout,
		}, log.Zerolog())
	}

	billingCfg := billing.DefaultConfig()
	billingCfg.BatchSize = cfg.SIFEN.BatchSize
	billingCfg.SubmitConcurrency = cfg.SIFEN.SubmitConcurrency
	billingCfg.StuckGrace = cfg.SIFEN.StuckGrace
	billingCfg.VoidByCreditAfter = cfg.SIFEN.VoidByCreditAfter
	billingCfg.RoundingUnit = cfg.SIFEN.RoundingUnit
	billingCfg.SecurityCodeAttempts = cfg.SIFEN.SecurityCodeAttempts

	allocator := numbering.NewAllocator(store, log.Zerolog())
	billingSvc := billing.NewService(billing.Deps{
		Store:     store,
		Allocator: allocator,
		Tax:       tax.NewEngine(amountPlaces),
		CDC:       domsifen.NewCDCGenerator(),
		Signer:    infrasifen.NewDocumentSigner(cert, cfg.SIFEN.Env, log.Zerolog()),
		Transport: transport,
	}, billingCfg, log.Zerolog())

	kudeUC := billing.NewKuDEUseCase(store, infrapdf.NewKuDEGenerator())
	authorizationUC := usecase.NewAuthorizationUseCase(store, log.Zerolog())

	// Poller de resultados: consulta lotes pendientes y libera los trabados en DISPATCHING.
	if transport != nil {
		poller := billing.NewPoller(billingSvc, cfg.SIFEN.PollInterval, log.Zerolog())
		go poller.Run(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.SIFEN.RequestTimeout + 10*time.Second, // firma + envío síncrono
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación SIFEN API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "sifen_env": cfg.SIFEN.Env})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Billing:         billingSvc,
		KuDE:            kudeUC,
		Allocator:       allocator,
		AuthorizationUC: authorizationUC,
		JWTSecret:       cfg.JWT.Secret,
		Log:             log.Zerolog(),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
