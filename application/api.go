package application

import (
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	configs "github.com/vendaops/console/configs"
	"github.com/vendaops/console/internal/carrier"
	"github.com/vendaops/console/internal/crm"
	redisdb "github.com/vendaops/console/internal/database/redis"
	"github.com/vendaops/console/internal/email"
	"github.com/vendaops/console/internal/email/mailjet"
	"github.com/vendaops/console/internal/email/smtp"
	"github.com/vendaops/console/internal/importer"
	"github.com/vendaops/console/internal/jobstore"
	"github.com/vendaops/console/internal/labels"
	"github.com/vendaops/console/internal/marketing"
	"github.com/vendaops/console/internal/scheduler"
	"github.com/vendaops/console/internal/templates"
	"github.com/vendaops/console/pkg/rest"
)

type Application struct {
	Config configs.Configs
	Logger *zap.Logger
	DB     *pgxpool.Pool
	Redis  *redisdb.Client
}

func (app *Application) Mount() http.Handler {
	mailer := app.buildMailer()

	e := echo.New()
	e.HTTPErrorHandler = app.CustomErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:  true,
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {

			status := v.Status
			if v.Error != nil {
				switch err := v.Error.(type) {
				case *echo.HTTPError:
					status = err.Code
				case *rest.ApiErr:
					status = err.Code
				}
			}

			if status >= 500 {
				app.Logger.Error("request",
					zap.Duration("latency", v.Latency),
					zap.Int("status", status),
					zap.String("uri", v.URI),
					zap.String("method", v.Method),
				)
				return nil
			}

			if status >= 400 {
				app.Logger.Warn("request",
					zap.Duration("latency", v.Latency),
					zap.Int("status", status),
					zap.String("uri", v.URI),
					zap.String("method", v.Method),
				)
				return nil
			}

			app.Logger.Info("request",
				zap.Duration("latency", v.Latency),
				zap.Int("status", status),
				zap.String("uri", v.URI),
				zap.String("method", v.Method),
			)
			return nil
		},
	}))

	// Initialize repositories and services
	store := jobstore.NewStore(app.Redis, app.Logger)

	templateService := templates.NewService(templates.NewRepository(app.DB), app.Logger)
	templateHandler := templates.NewHandler(templateService)

	crmClient := crm.NewClient(app.Config.CRMBaseURL, app.Config.CRMToken)
	resolver := crm.NewResolver(crmClient, app.Logger)

	importService := importer.NewService(store, resolver, app.Logger)
	importHandler := importer.NewHandler(importService, templateService)

	carrierClient := carrier.NewClient(carrier.Config{
		PostURL:  app.Config.CarrierPostURL,
		PrintURL: app.Config.CarrierPrintURL,
		Profile: carrier.Profile{
			IDPerfil: app.Config.CarrierIDPerfil,
			Token:    app.Config.CarrierToken,
		},
		Contract: carrier.Contract{
			NumeroContrato:       app.Config.CarrierContract,
			CartaoPostagem:       app.Config.CarrierPostageCard,
			CodigoAdministrativo: app.Config.CarrierAdminCode,
		},
	})

	labelService := labels.NewService(labels.NewRepository(app.DB), carrierClient, labels.Config{
		PhysicalMarker:     app.Config.PhysicalMarker,
		DefaultServiceCode: app.Config.CarrierServiceCode,
		CarrierName:        app.Config.CarrierName,
		TrackingBaseURL:    app.Config.TrackingBaseURL,
		IssueDelay:         time.Duration(app.Config.LabelIssueDelayMS) * time.Millisecond,
	}, app.Logger)
	labelHandler := labels.NewHandler(labelService, templateService)

	// Initialize and start the marketing sync scheduler
	marketingClient := marketing.NewClient(app.Config.MarketingBaseURL, app.Config.MarketingToken)
	syncer := marketing.NewSyncer(crmClient, marketingClient, marketing.NewState(app.Redis), store, app.Logger)
	syncScheduler := scheduler.NewScheduler(syncer, app.Logger, mailer, app.Config.AlertRecipients)
	if err := syncScheduler.Start(app.Config.CronExpression); err != nil {
		app.Logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	api := e.Group("/api")

	// Import API routes
	api.POST("/imports", importHandler.StartImport)
	api.GET("/imports", importHandler.ListImports)
	api.GET("/imports/:id", importHandler.GetImport)
	api.GET("/imports/:id/stream", importHandler.StreamImport)
	api.POST("/imports/:id/resume", importHandler.ResumeImport)
	api.POST("/imports/:id/cancel", importHandler.CancelImport)
	api.DELETE("/imports/:id", importHandler.DeleteImport)
	api.POST("/mappings/detect", importHandler.DetectMapping)

	// Template API routes
	api.POST("/templates", templateHandler.CreateTemplate)
	api.GET("/templates", templateHandler.ListTemplates)
	api.GET("/templates/:id", templateHandler.GetTemplate)
	api.PUT("/templates/:id", templateHandler.UpdateTemplate)
	api.DELETE("/templates/:id", templateHandler.DeleteTemplate)

	// Label API routes
	api.POST("/labels/import", labelHandler.ImportOrders)
	api.GET("/labels", labelHandler.ListOrders)
	api.PUT("/labels/:id/planned", labelHandler.SetPlannedCount)
	api.POST("/labels/:id/planned/increment", labelHandler.IncrementPlannedCount)
	api.POST("/labels/generate", labelHandler.GenerateLabels)
	api.POST("/labels/merge", labelHandler.MergeOrders)
	api.POST("/labels/:id/unmerge", labelHandler.UnmergeOrder)
	api.GET("/labels/export", labelHandler.ExportTracking)
	api.POST("/labels/print", labelHandler.PrintSheet)

	e.GET("/healthz", app.healthz)

	return e
}

// buildMailer picks the alert email provider: Mailjet when its keys are
// configured, plain SMTP otherwise.
func (app *Application) buildMailer() email.Email {
	if app.Config.MAILJET_API_KEY != "" {
		return mailjet.New(
			app.Config.MAILJET_API_KEY,
			app.Config.MAILJET_API_SECRET,
			app.Config.EmailFrom,
			app.Config.EmailFromName,
		)
	}
	return smtp.New(
		app.Config.EmailFrom,
		app.Config.SMTP_HOST,
		app.Config.SMTP_USER,
		app.Config.SMTP_PASS,
		app.Config.SMTP_PORT,
	)
}

func (app *Application) healthz(c echo.Context) error {
	ctx := c.Request().Context()

	if err := app.DB.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down", "postgres": err.Error()})
	}
	if err := app.Redis.HealthCheck(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down", "redis": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (app *Application) Run(h http.Handler) error {
	srv := &http.Server{
		Addr:    app.Config.WebServerPort,
		Handler: h,
		// no WriteTimeout: SSE responses stay open for the whole import
		ReadTimeout: time.Second * 10,
		IdleTimeout: time.Minute,
	}

	log.Printf("server has started at addr %s", app.Config.WebServerPort)

	return srv.ListenAndServe()
}
